package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"carmatch/internal/aggregate"
	"carmatch/internal/cache"
	"carmatch/internal/chart"
	"carmatch/internal/core"
	applog "carmatch/internal/log"
	"carmatch/internal/records"
)

// DefaultLoadTimeout bounds how long a dashboard build waits for the store.
const DefaultLoadTimeout = 7 * time.Second

// Report is one computed dashboard together with the summary behind it.
type Report struct {
	Hash      string
	Summary   aggregate.Summary
	Dashboard chart.Dashboard
}

// DashboardOptions configures a DashboardService.
type DashboardOptions struct {
	Palette     []string
	PieColors   []string
	// HobbyColors pins a slice color to a hobby regardless of its rank.
	HobbyColors map[string]string
	CacheSize   int
	CacheTTL    time.Duration
	LoadTimeout time.Duration
	Now         func() time.Time
}

// DashboardService loads a snapshot of the store and turns it into charts.
// Identical snapshots on the same day share one cached report.
type DashboardService struct {
	loader      records.Loader
	engine      *aggregate.Engine
	assign      chart.ColorAssigner
	hobbyColors map[string]string
	loadTimeout time.Duration

	cache *cache.LRUCache[Report]
	group singleflight.Group
}

func NewDashboardService(loader records.Loader, opts DashboardOptions) *DashboardService {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 16
	}
	return &DashboardService{
		loader:      loader,
		engine:      aggregate.NewEngine(opts.Palette, opts.Now),
		assign:      chart.CyclicColors(opts.PieColors),
		hobbyColors: opts.HobbyColors,
		loadTimeout: opts.LoadTimeout,
		cache:       cache.NewLRUCache[Report](opts.CacheSize, opts.CacheTTL),
	}
}

// Cache exposes the report cache so it can be registered for expiry.
func (s *DashboardService) Cache() *cache.LRUCache[Report] {
	return s.cache
}

// Build returns the dashboard for the current contents of the store.
func (s *DashboardService) Build(ctx context.Context) (Report, error) {
	loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	snap, err := records.Snapshot(loadCtx, s.loader)
	if err != nil {
		return Report{}, fmt.Errorf("load submissions: %w", err)
	}

	now := s.engine.Now()
	key, err := contentHash(snap, s.engine.Palette, now)
	if err != nil {
		return Report{}, fmt.Errorf("hash snapshot: %w", err)
	}
	if r, ok := s.cache.Get(key); ok {
		slog.DebugContext(ctx, "Dashboard served from cache", applog.FieldCacheKey, key[:12])
		return r, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		if r, ok := s.cache.Get(key); ok {
			return r, nil
		}
		r, err := s.compute(ctx, snap, now)
		if err != nil {
			return Report{}, err
		}
		r.Hash = key
		s.cache.Set(key, r)
		return r, nil
	})
	if err != nil {
		return Report{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Dashboard build shared with concurrent request", applog.FieldCacheKey, key[:12])
	}
	return v.(Report), nil
}

// Invalidate drops every cached report.
func (s *DashboardService) Invalidate() {
	s.cache.Purge()
}

func (s *DashboardService) compute(ctx context.Context, snap []core.SubmissionRecord, now time.Time) (Report, error) {
	summary, err := s.engine.SummarizeAt(ctx, snap, now)
	if err != nil {
		return Report{}, fmt.Errorf("aggregate submissions: %w", err)
	}
	logSkipped(ctx, summary)

	return Report{
		Summary:   summary,
		Dashboard: chart.Build(summary, s.engine.Palette, chart.KeyedColors(summary.Hobbies, s.hobbyColors, s.assign)),
	}, nil
}

func logSkipped(ctx context.Context, s aggregate.Summary) {
	if s.ColorAge.Skipped > 0 {
		fields := applog.NewFields().
			WithComponent(applog.ComponentEngine).
			WithOperation(applog.OpAggregate).
			WithAggregation("color_age", s.ColorAge.Skipped)
		fields[applog.FieldRecordCount] = s.RecordCount
		slog.WarnContext(ctx, "Submissions skipped by aggregation", fields.ToSlice()...)
	}
	if s.MotorGender.Unspecified > 0 {
		slog.DebugContext(ctx, "Submissions without a motor type",
			applog.FieldComponent, applog.ComponentEngine,
			"count", s.MotorGender.Unspecified)
	}
}

// contentHash identifies a snapshot together with the inputs that change the
// result: palette order and the calendar date ages are computed against. The
// date is taken in now's own location, as core.Age does.
func contentHash(snap []core.SubmissionRecord, palette []string, now time.Time) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(palette); err != nil {
		return "", err
	}
	if err := enc.Encode(now.Format("2006-01-02")); err != nil {
		return "", err
	}
	for _, r := range snap {
		// map keys are encoded in sorted order
		if err := enc.Encode(records.EncodeRaw(r)); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
