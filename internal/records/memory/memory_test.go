package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"carmatch/internal/core"
)

func TestMemoryStoreAppendAndLoad(t *testing.T) {
	s := New(nil)
	recs, err := s.Load(context.Background())
	if err != nil || recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil load, got %v err=%v", recs, err)
	}

	ref, err := s.Append(context.Background(), core.SubmissionRecord{
		FullName: "t",
		Hobbies:  []string{"art"},
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	recs, _ = s.Load(context.Background())
	if len(recs) != 1 || recs[0].ID == "" || recs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned, got %+v", recs)
	}

	// Mutating a loaded snapshot must not leak into the store.
	recs[0].Hobbies[0] = "changed"
	again, _ := s.Load(context.Background())
	if again[0].Hobbies[0] != "art" {
		t.Fatalf("load returned a live reference")
	}
}

func TestAppendKeepsProvidedID(t *testing.T) {
	s := New(nil)
	if _, err := s.Append(context.Background(), core.SubmissionRecord{ID: "fixed"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	recs, _ := s.Load(context.Background())
	if recs[0].ID != "fixed" {
		t.Fatalf("expected provided id kept, got %q", recs[0].ID)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	// Missing file -> empty store
	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil || s.Len() != 0 {
		t.Fatalf("expected empty store, got len=%d err=%v", s.Len(), err)
	}

	path := filepath.Join(dir, "submissions.json")
	content := `[{"fullName":"A","gender":"male","birthDate":"2000-01-01","hobbies":["x"],"favoriteColor":"red","numOfSeats":4,"motorType":"electric"}, "junk"]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 seeded record, got %d", s.Len())
	}

	if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected error for corrupt seed file")
	}
}
