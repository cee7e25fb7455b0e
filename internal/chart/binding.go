// Package chart maps aggregation results onto the shapes a chart renderer
// consumes. It never alters counts, only orders and labels them.
package chart

import (
	"carmatch/internal/aggregate"
	"carmatch/internal/core"
)

type (
	// BarDataset is one series of a grouped bar chart.
	BarDataset struct {
		Label           string   `json:"label"`
		Data            []int    `json:"data"`
		BackgroundColor []string `json:"backgroundColor"`
	}

	// BarSeries is a grouped bar chart: one dataset per age group, one
	// category per palette color.
	BarSeries struct {
		Labels   []string     `json:"labels"`
		Datasets []BarDataset `json:"datasets"`
	}

	// PieSeries is a pie chart with one slice per hobby.
	PieSeries struct {
		Labels      []string `json:"labels"`
		Data        []int    `json:"data"`
		SliceColors []string `json:"sliceColors"`
	}

	// Table is a plain tabular rendering of the motor/gender matrix.
	Table struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}

	// Dashboard is everything the dashboard page renders.
	Dashboard struct {
		RecordCount int       `json:"recordCount"`
		Empty       bool      `json:"empty"`
		Colors      BarSeries `json:"colors"`
		Hobbies     PieSeries `json:"hobbies"`
		MotorTypes  Table     `json:"motorTypes"`
	}

	// ColorAssigner picks a slice color by position.
	ColorAssigner func(index int) string
)

// MotorTableColumns are the column keys of ToMotorTable.
var MotorTableColumns = []string{"motorType", "male", "female"}

// ToBarSeries emits one dataset per age-group row with values positioned by
// palette order, so a color always occupies the same axis slot. Colors
// observed outside the palette have no axis slot and are not plotted.
func ToBarSeries(m aggregate.ColorAgeMatrix, palette []string) BarSeries {
	labels := make([]string, len(palette))
	copy(labels, palette)

	series := BarSeries{
		Labels:   labels,
		Datasets: make([]BarDataset, 0, len(m.Rows)),
	}
	for _, row := range m.Rows {
		data := make([]int, len(palette))
		for i, color := range palette {
			data[i] = row.Counts[color]
		}
		series.Datasets = append(series.Datasets, BarDataset{
			Label:           string(row.AgeGroup),
			Data:            data,
			BackgroundColor: labels,
		})
	}
	return series
}

// ToPieSeries keeps the ranking order of freq. Slice colors follow position,
// not hobby identity; use KeyedColors for hobby-stable coloring.
func ToPieSeries(freq aggregate.HobbyFrequency, assign ColorAssigner) PieSeries {
	series := PieSeries{
		Labels:      make([]string, len(freq)),
		Data:        make([]int, len(freq)),
		SliceColors: make([]string, len(freq)),
	}
	for i, hc := range freq {
		series.Labels[i] = hc.Hobby
		series.Data[i] = hc.Count
		if assign != nil {
			series.SliceColors[i] = assign(i)
		}
	}
	return series
}

// ToMotorTable renders the motor/gender matrix as rows of
// [motorType, male, female].
func ToMotorTable(m aggregate.MotorGenderMatrix) Table {
	t := Table{
		Columns: append([]string(nil), MotorTableColumns...),
		Rows:    make([][]any, 0, len(m.Rows)),
	}
	for _, r := range m.Rows {
		t.Rows = append(t.Rows, []any{r.MotorType, r.MaleCount, r.FemaleCount})
	}
	return t
}

// CyclicColors assigns colors by index, wrapping around the list.
func CyclicColors(colors []string) ColorAssigner {
	cs := append([]string(nil), colors...)
	return func(i int) string {
		if len(cs) == 0 || i < 0 {
			return ""
		}
		return cs[i%len(cs)]
	}
}

// KeyedColors assigns each slice the color configured for its hobby,
// falling back to the positional assigner for hobbies without one.
func KeyedColors(freq aggregate.HobbyFrequency, byHobby map[string]string, fallback ColorAssigner) ColorAssigner {
	return func(i int) string {
		if i >= 0 && i < len(freq) {
			if c, ok := byHobby[freq[i].Hobby]; ok {
				return c
			}
		}
		if fallback == nil {
			return ""
		}
		return fallback(i)
	}
}

// Build binds a whole summary for the dashboard.
func Build(s aggregate.Summary, palette []string, assign ColorAssigner) Dashboard {
	return Dashboard{
		RecordCount: s.RecordCount,
		Empty:       s.Empty(),
		Colors:      ToBarSeries(s.ColorAge, palette),
		Hobbies:     ToPieSeries(s.Hobbies, assign),
		MotorTypes:  ToMotorTable(s.MotorGender),
	}
}

// AgeGroups lists the dataset labels of a bar series as age groups.
func (b BarSeries) AgeGroups() []core.AgeGroup {
	out := make([]core.AgeGroup, len(b.Datasets))
	for i, d := range b.Datasets {
		out[i] = core.AgeGroup(d.Label)
	}
	return out
}
