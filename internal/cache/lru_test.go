package cache

import (
	"context"
	"testing"
	"time"
)

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b was least recently used and should be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %d, %v; want 1, true", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("j", "w")
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0", c.Size())
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("acc-1|summary|", 1)
	c.Set("acc-1|trend|2025-03", 2)
	c.Set("acc-10|summary|", 3)
	c.Set("acc-2|summary|", 4)

	if n := c.DeletePrefix("acc-1|"); n != 2 {
		t.Fatalf("DeletePrefix removed %d, want 2", n)
	}
	if _, ok := c.Get("acc-10|summary|"); !ok {
		t.Error("acc-10 must survive invalidation of acc-1")
	}
	if _, ok := c.Get("acc-2|summary|"); !ok {
		t.Error("acc-2 must survive invalidation of acc-1")
	}
}

func TestLRUCache_Stats(t *testing.T) {
	c := NewLRUCache[int](1, time.Minute)
	c.Get("missing")
	c.Set("k", 1)
	c.Get("k")
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d, want 1/1", hits, misses)
	}
}

func TestManager_Sweep(t *testing.T) {
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set("k", 1)
	time.Sleep(time.Millisecond)

	m := NewManager()
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}

	m.Start(context.Background(), time.Hour)
	m.Stop()
	m.Stop()
}
