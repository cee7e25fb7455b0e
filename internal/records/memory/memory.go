package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"carmatch/internal/core"
	"carmatch/internal/records"
)

var _ records.Store = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	items []core.SubmissionRecord
	now   func() time.Time
}

func New(seed []core.SubmissionRecord) *Store {
	return &Store{items: records.Clone(seed), now: time.Now}
}

// NewFromFile seeds the store from a JSON array of stored submissions. A
// missing file yields an empty store; entries that are not objects are
// dropped with a warning.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	recs, issues, err := records.DecodeJSONArray(data)
	if err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for idx, iss := range issues {
		slog.Warn("Seed entry has decode issues", "path", path, "index", idx, "issues", len(iss))
	}
	return New(recs), nil
}

// Append stores the record and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r core.SubmissionRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	r.Hobbies = append([]string(nil), r.Hobbies...)
	s.items = append(s.items, r)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Load returns a copy of every stored record.
func (s *Store) Load(_ context.Context) ([]core.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return records.Clone(s.items), nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
