package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"carmatch/internal/core"
	"carmatch/internal/records"
)

// SyncPublisher announces a stored submission to the mirror worker.
type SyncPublisher interface {
	PublishSubmissionSync(ctx context.Context, id, version int64) error
}

// Invalidator is notified after every successful append.
type Invalidator interface {
	Invalidate()
}

// SubmissionService validates intake and writes it to the configured store.
type SubmissionService struct {
	store       records.Appender
	options     core.Options
	publisher   SyncPublisher
	invalidator Invalidator
	now         func() time.Time
}

// NewSubmissionService wires the intake path. publisher and invalidator may
// be nil.
func NewSubmissionService(store records.Appender, options core.Options, publisher SyncPublisher, invalidator Invalidator) *SubmissionService {
	return &SubmissionService{
		store:       store,
		options:     options,
		publisher:   publisher,
		invalidator: invalidator,
		now:         time.Now,
	}
}

func (s *SubmissionService) Options() core.Options {
	return s.options
}

// Submit validates the record, stamps it with an id and creation time and
// appends it. Validation failures are returned as *core.ValidationError.
func (s *SubmissionService) Submit(ctx context.Context, r core.SubmissionRecord) (core.SubmissionRecord, string, error) {
	now := s.now()
	if err := r.Validate(s.options, now); err != nil {
		return core.SubmissionRecord{}, "", err
	}

	r.ID = uuid.NewString()
	r.CreatedAt = now.UTC()
	r.Hobbies = append([]string(nil), r.Hobbies...)

	ref, err := s.store.Append(ctx, r)
	if err != nil {
		return core.SubmissionRecord{}, "", fmt.Errorf("save submission: %w", err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}

	s.publishSync(ctx, ref)
	return r, ref, nil
}

// publishSync announces stores with numeric row ids; a failed publish is
// logged and left to the worker's pending sweep.
func (s *SubmissionService) publishSync(ctx context.Context, ref string) {
	if s.publisher == nil {
		return
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		slog.DebugContext(ctx, "Store reference is not a row id, skipping sync message", "ref", ref)
		return
	}
	if err := s.publisher.PublishSubmissionSync(ctx, id, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}
