package kv

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClockedStore[V any](t *testing.T, ttl time.Duration) (*Store[V], *fakeClock) {
	t.Helper()
	s := NewStore[V](ttl)
	clock := newFakeClock()
	s.now = clock.Now
	t.Cleanup(s.Close)
	return s, clock
}

func TestStorePutGet(t *testing.T) {
	s, _ := newClockedStore[string](t, time.Minute)

	if _, ok := s.Get("missing"); ok {
		t.Fatal("absent key reported present")
	}

	s.Put("k", "v")
	got, ok := s.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get = (%q, %v)", got, ok)
	}
}

func TestStoreLazyExpiry(t *testing.T) {
	s, clock := newClockedStore[string](t, time.Minute)
	s.Put("k", "v")

	clock.Advance(time.Minute + time.Second)
	if _, ok := s.Get("k"); ok {
		t.Fatal("expired entry still live")
	}
	// Expired-on-read entries are evicted, not just hidden.
	if s.Len() != 0 {
		t.Fatalf("Len = %d after expired read, want 0", s.Len())
	}
}

func TestStorePutResetsAge(t *testing.T) {
	s, clock := newClockedStore[string](t, time.Minute)
	s.Put("k", "v1")

	clock.Advance(45 * time.Second)
	s.Put("k", "v2")
	clock.Advance(45 * time.Second)

	got, ok := s.Get("k")
	if !ok || got != "v2" {
		t.Fatalf("rewritten entry expired early: (%q, %v)", got, ok)
	}
}

func TestStoreAge(t *testing.T) {
	s, clock := newClockedStore[string](t, time.Minute)
	s.Put("k", "v")

	clock.Advance(10 * time.Second)
	age, ok := s.Age("k")
	if !ok || age != 10*time.Second {
		t.Fatalf("Age = (%v, %v)", age, ok)
	}
	if _, ok := s.Age("missing"); ok {
		t.Fatal("absent key has an age")
	}
}

func TestStoreUpdate(t *testing.T) {
	s, clock := newClockedStore[int](t, time.Minute)

	// Absent key: fn sees ok=false.
	got := s.Update("k", func(current int, ok bool) (int, bool) {
		if ok {
			t.Fatal("absent key reported present")
		}
		return 1, true
	})
	if got != 1 {
		t.Fatalf("Update returned %d", got)
	}

	// Present key: fn sees the current value, and the entry keeps its
	// original age.
	clock.Advance(30 * time.Second)
	got = s.Update("k", func(current int, ok bool) (int, bool) {
		if !ok || current != 1 {
			t.Fatalf("fn got (%d, %v)", current, ok)
		}
		return current + 1, true
	})
	if got != 2 {
		t.Fatalf("Update returned %d", got)
	}
	if age, _ := s.Age("k"); age != 30*time.Second {
		t.Fatalf("Update renewed age to %v", age)
	}

	// keep=false deletes.
	s.Update("k", func(int, bool) (int, bool) { return 0, false })
	if _, ok := s.Get("k"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestStoreUpdateExpiredLooksAbsent(t *testing.T) {
	s, clock := newClockedStore[int](t, time.Minute)
	s.Put("k", 5)

	clock.Advance(2 * time.Minute)
	s.Update("k", func(current int, ok bool) (int, bool) {
		if ok || current != 0 {
			t.Fatalf("expired entry visible as (%d, %v)", current, ok)
		}
		return 1, true
	})
}

func TestStoreTouch(t *testing.T) {
	s, clock := newClockedStore[string](t, time.Minute)
	s.Put("k", "v")

	clock.Advance(50 * time.Second)
	s.Touch("k")
	clock.Advance(50 * time.Second)

	if _, ok := s.Get("k"); !ok {
		t.Fatal("touched entry expired")
	}
}

func TestStoreSweep(t *testing.T) {
	s, clock := newClockedStore[string](t, time.Minute)
	s.Put("old", "v")
	clock.Advance(45 * time.Second)
	s.Put("fresh", "v")
	clock.Advance(30 * time.Second)

	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d after sweep, want 1", s.Len())
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatal("live entry swept")
	}
}
