package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("a should survive eviction, got %q %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set("k", "v")
	clk.t = clk.t.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be fresh")
	}
	clk.t = clk.t.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on read, size %d", c.Size())
	}
}

func TestLRUZeroTTLNeverExpires(t *testing.T) {
	c, clk := newTestCache(4, 0)
	c.Set("k", "v")
	clk.t = clk.t.Add(24 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("zero TTL entries should not expire")
	}
}

func TestCleanExpiredAndPurge(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set("old", "1")
	clk.t = clk.t.Add(45 * time.Second)
	c.Set("new", "2")
	clk.t = clk.t.Add(30 * time.Second)

	m := NewManager()
	m.Register(c)
	if n := m.cleanNow(); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatal("fresh entry removed")
	}

	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("purge left %d entries", c.Size())
	}
	c.Set("again", "3")
	if _, ok := c.Get("again"); !ok {
		t.Fatal("cache unusable after purge")
	}
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	c.Get("missing")
	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()

	m.StartCleanup(time.Hour)
	m.Stop()
}
