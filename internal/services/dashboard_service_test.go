package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carmatch/internal/core"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeLoader struct {
	mu    sync.Mutex
	recs  []core.SubmissionRecord
	calls atomic.Int32
	err   error
}

func (f *fakeLoader) Load(ctx context.Context) ([]core.SubmissionRecord, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs, nil
}

func (f *fakeLoader) add(r core.SubmissionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, r)
}

type blockingLoader struct{}

func (blockingLoader) Load(ctx context.Context) ([]core.SubmissionRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func rec(name string, age int, color, motor string, g core.Gender, hobbies ...string) core.SubmissionRecord {
	return core.SubmissionRecord{
		FullName:      name,
		Gender:        g,
		BirthDate:     core.NewDate(testNow.Year()-age, 1, 1),
		FavoriteColor: color,
		MotorType:     motor,
		Hobbies:       hobbies,
		NumOfSeats:    4,
	}
}

func newTestDashboard(l *fakeLoader) *DashboardService {
	return NewDashboardService(l, DashboardOptions{
		Palette:   []string{"red", "blue"},
		PieColors: []string{"#111", "#222"},
		CacheTTL:  time.Minute,
		Now:       func() time.Time { return testNow },
	})
}

func TestDashboardBuild(t *testing.T) {
	l := &fakeLoader{recs: []core.SubmissionRecord{
		rec("a", 20, "red", "electric", core.Male, "music", "art"),
		rec("b", 30, "blue", "electric", core.Female, "music"),
		rec("c", 50, "", "diesel", core.Other),
	}}
	s := newTestDashboard(l)

	r, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d := r.Dashboard
	if d.RecordCount != 3 || d.Empty {
		t.Fatalf("unexpected dashboard header %+v", d)
	}
	if len(d.Colors.Datasets) != 2 {
		t.Fatalf("expected 2 age-group datasets, got %d", len(d.Colors.Datasets))
	}
	if r.Summary.ColorAge.Skipped != 1 {
		t.Fatalf("expected blank color skipped, got %d", r.Summary.ColorAge.Skipped)
	}
	if d.Hobbies.Labels[0] != "music" || d.Hobbies.Data[0] != 2 || d.Hobbies.SliceColors[0] != "#111" {
		t.Fatalf("unexpected pie %+v", d.Hobbies)
	}
	if len(d.MotorTypes.Rows) != 2 {
		t.Fatalf("expected 2 motor rows, got %v", d.MotorTypes.Rows)
	}
	if r.Hash == "" {
		t.Fatal("report should carry its content hash")
	}
}

func TestDashboardEmptyStore(t *testing.T) {
	s := newTestDashboard(&fakeLoader{})
	r, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !r.Dashboard.Empty || r.Dashboard.RecordCount != 0 {
		t.Fatalf("expected empty dashboard, got %+v", r.Dashboard)
	}
}

func TestDashboardCachesByContent(t *testing.T) {
	l := &fakeLoader{recs: []core.SubmissionRecord{rec("a", 20, "red", "electric", core.Male, "music")}}
	s := newTestDashboard(l)
	ctx := context.Background()

	first, _ := s.Build(ctx)
	second, _ := s.Build(ctx)
	if first.Hash != second.Hash {
		t.Fatal("same snapshot should hash identically")
	}
	if st := s.Cache().Stats(); st.Hits != 1 {
		t.Fatalf("expected one cache hit, got %+v", st)
	}

	l.add(rec("b", 30, "blue", "hybrid", core.Female, "art"))
	third, _ := s.Build(ctx)
	if third.Hash == first.Hash || third.Dashboard.RecordCount != 2 {
		t.Fatalf("appended record not reflected: %+v", third.Dashboard)
	}

	s.Invalidate()
	if s.Cache().Size() != 0 {
		t.Fatal("invalidate should drop cached reports")
	}
	if l.calls.Load() != 3 {
		t.Fatalf("every build must load a fresh snapshot, got %d loads", l.calls.Load())
	}
}

func TestDashboardHashDependsOnDate(t *testing.T) {
	recs := []core.SubmissionRecord{rec("a", 20, "red", "electric", core.Male)}
	a, _ := contentHash(recs, []string{"red"}, testNow)
	b, _ := contentHash(recs, []string{"red"}, testNow.Add(time.Hour))
	c, _ := contentHash(recs, []string{"red"}, testNow.AddDate(0, 0, 1))
	if a != b {
		t.Fatal("same calendar day should share a hash")
	}
	if a == c {
		t.Fatal("a new day can change ages and must change the hash")
	}
}

func TestDashboardRefreshesAtLocalMidnight(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*60*60)
	clock := time.Date(2025, 6, 15, 20, 0, 0, 0, zone)
	l := &fakeLoader{recs: []core.SubmissionRecord{{
		FullName:      "a",
		Gender:        core.Male,
		BirthDate:     core.NewDate(1999, 6, 16),
		FavoriteColor: "red",
		MotorType:     "electric",
	}}}
	s := NewDashboardService(l, DashboardOptions{
		Palette:  []string{"red"},
		CacheTTL: time.Hour,
		Now:      func() time.Time { return clock },
	})
	ctx := context.Background()

	first, err := s.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	clock = time.Date(2025, 6, 16, 9, 0, 0, 0, zone)
	second, err := s.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := first.Summary.ColorAge.Rows[0].AgeGroup; got != core.AgeGroup18To25 {
		t.Fatalf("before the birthday got %s, want 18-25", got)
	}
	if got := second.Summary.ColorAge.Rows[0].AgeGroup; got != core.AgeGroup26To35 {
		t.Fatalf("after local midnight got %s, want 26-35", got)
	}
	if first.Hash == second.Hash {
		t.Fatal("a new local day must change the cache key")
	}
}

func TestDashboardDoesNotMutateStore(t *testing.T) {
	l := &fakeLoader{recs: []core.SubmissionRecord{rec("a", 20, "red", "electric", core.Male, "music")}}
	s := newTestDashboard(l)
	if _, err := s.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if l.recs[0].Hobbies[0] != "music" || len(l.recs) != 1 {
		t.Fatalf("store contents changed: %+v", l.recs)
	}
}

func TestDashboardLoadErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	s := newTestDashboard(&fakeLoader{err: boom})
	if _, err := s.Build(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped load error, got %v", err)
	}

	slow := NewDashboardService(blockingLoader{}, DashboardOptions{LoadTimeout: 10 * time.Millisecond})
	if _, err := slow.Build(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected load timeout, got %v", err)
	}
}

func TestDashboardConcurrentBuilds(t *testing.T) {
	l := &fakeLoader{recs: []core.SubmissionRecord{
		rec("a", 20, "red", "electric", core.Male, "music"),
		rec("b", 22, "blue", "hybrid", core.Female, "art"),
	}}
	s := newTestDashboard(l)

	var wg sync.WaitGroup
	hashes := make([]string, 8)
	for i := range hashes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.Build(context.Background())
			if err != nil {
				t.Errorf("Build: %v", err)
				return
			}
			hashes[i] = r.Hash
		}(i)
	}
	wg.Wait()
	for _, h := range hashes[1:] {
		if h != hashes[0] {
			t.Fatal("concurrent builds disagree")
		}
	}
	if s.Cache().Size() != 1 {
		t.Fatalf("expected a single cached report, got %d", s.Cache().Size())
	}
}

func TestDashboardHobbyColorsPinned(t *testing.T) {
	l := &fakeLoader{recs: []core.SubmissionRecord{
		rec("a", 20, "red", "electric", core.Male, "art", "music"),
		rec("b", 22, "red", "electric", core.Male, "music"),
	}}
	s := NewDashboardService(l, DashboardOptions{
		Palette:     []string{"red"},
		PieColors:   []string{"#111", "#222"},
		HobbyColors: map[string]string{"art": "#art"},
		Now:         func() time.Time { return testNow },
	})
	r, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pie := r.Dashboard.Hobbies
	if pie.Labels[1] != "art" || pie.SliceColors[1] != "#art" || pie.SliceColors[0] != "#111" {
		t.Fatalf("unexpected slice colors %+v", pie)
	}
}
