package aggregate

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"carmatch/internal/core"
)

// ComputeColorAgeMatrix counts favorite colors per age group as of now.
// Each row carries every palette color (zero when absent) plus any
// non-palette color actually observed. Records without a usable birth date
// or color are skipped.
func ComputeColorAgeMatrix(records []core.SubmissionRecord, palette []string, now time.Time) ColorAgeMatrix {
	var m ColorAgeMatrix
	index := make(map[core.AgeGroup]int)

	for _, r := range records {
		color := strings.TrimSpace(r.FavoriteColor)
		if r.BirthDate.IsZero() || r.BirthDate.After(now) || color == "" {
			m.Skipped++
			continue
		}
		group := core.AgeGroupOf(r.BirthDate, now)
		i, ok := index[group]
		if !ok {
			counts := make(map[string]int, len(palette))
			for _, c := range palette {
				counts[c] = 0
			}
			m.Rows = append(m.Rows, ColorAgeRow{AgeGroup: group, Counts: counts})
			i = len(m.Rows) - 1
			index[group] = i
		}
		m.Rows[i].Counts[color]++
	}
	return m
}

// ComputeHobbyFrequency counts every hobby entry across all records and
// ranks them by descending count. Ties keep the order in which the hobbies
// were first seen.
func ComputeHobbyFrequency(records []core.SubmissionRecord) HobbyFrequency {
	freq := HobbyFrequency{}
	index := make(map[string]int)

	for _, r := range records {
		for _, h := range r.Hobbies {
			h = strings.TrimSpace(h)
			if h == "" {
				continue
			}
			i, ok := index[h]
			if !ok {
				freq = append(freq, HobbyCount{Hobby: h})
				i = len(freq) - 1
				index[h] = i
			}
			freq[i].Count++
		}
	}

	sort.SliceStable(freq, func(a, b int) bool {
		return freq[a].Count > freq[b].Count
	})
	return freq
}

// ComputeMotorGenderMatrix counts male and female respondents per motor
// type. A row exists for every observed motor type even when no respondent
// of either gender picked it. Blank motor types share the
// UnspecifiedMotorType row.
func ComputeMotorGenderMatrix(records []core.SubmissionRecord) MotorGenderMatrix {
	var m MotorGenderMatrix
	index := make(map[string]int)

	for _, r := range records {
		motor := strings.TrimSpace(r.MotorType)
		if motor == "" {
			motor = UnspecifiedMotorType
			m.Unspecified++
		}
		i, ok := index[motor]
		if !ok {
			m.Rows = append(m.Rows, MotorGenderRow{MotorType: motor})
			i = len(m.Rows) - 1
			index[motor] = i
		}
		switch r.Gender {
		case core.Male:
			m.Rows[i].MaleCount++
		case core.Female:
			m.Rows[i].FemaleCount++
		}
	}
	return m
}

// Engine binds the configured palette and clock to the pure functions above.
type Engine struct {
	Palette []string
	Now     func() time.Time
}

// NewEngine returns an Engine using the wall clock when now is nil.
func NewEngine(palette []string, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	p := make([]string, len(palette))
	copy(p, palette)
	return &Engine{Palette: p, Now: now}
}

// Summarize aggregates records as of the engine clock.
func (e *Engine) Summarize(ctx context.Context, records []core.SubmissionRecord) (Summary, error) {
	return e.SummarizeAt(ctx, records, e.Now())
}

// SummarizeAt runs the three aggregations concurrently against one snapshot.
// The snapshot is only read, so the goroutines share it without locking. It
// fails only when ctx is done before the aggregations start.
func (e *Engine) SummarizeAt(ctx context.Context, records []core.SubmissionRecord, now time.Time) (Summary, error) {
	s := Summary{RecordCount: len(records), GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		s.ColorAge = ComputeColorAgeMatrix(records, e.Palette, now)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		s.Hobbies = ComputeHobbyFrequency(records)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		s.MotorGender = ComputeMotorGenderMatrix(records)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return s, nil
}
