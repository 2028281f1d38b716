package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time         { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Hour).WithClock(clock.Now)

	c.Set("latest", "v1")
	clock.Advance(59 * time.Minute)
	if v, ok := c.Get("latest"); !ok || v != "v1" {
		t.Fatalf("expected fresh entry, got %q ok=%v", v, ok)
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("latest"); ok {
		t.Fatalf("entry should expire after exactly one TTL")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on read, size=%d", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("expected %q to survive", k)
		}
	}
}

func TestLRUCacheOverwrite(t *testing.T) {
	c := NewLRUCache[int](1, time.Hour)
	c.Set("k", 1)
	c.Set("k", 2)
	if v, _ := c.Get("k"); v != 2 {
		t.Fatalf("last writer should win, got %d", v)
	}
	c.Delete("k")
	if c.Size() != 0 {
		t.Fatalf("delete failed")
	}
}

func TestManagerCleanAll(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	short := NewLRUCache[int](10, time.Minute).WithClock(clock.Now)
	long := NewLRUCache[int](10, 7*24*time.Hour).WithClock(clock.Now)
	short.Set("a", 1)
	short.Set("b", 2)
	long.Set("c", 3)

	m := NewManager(nil)
	m.Register(short, long)
	clock.Advance(time.Hour)

	if n := m.CleanAll(); n != 2 {
		t.Fatalf("expected 2 evictions, got %d", n)
	}
	if long.Size() != 1 {
		t.Fatalf("long-lived entry should remain")
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
