// Package kv provides an expiring in-memory key-value store.
//
// Each Store instance owns one keyspace (CSRF tokens, one rate-limit tier).
// Entries expire lazily on read and are physically reclaimed by a periodic
// sweep, so memory stays bounded even for keys that are never read again.
package kv

import (
	"sync"
	"time"
)

// entry pairs a value with its creation time. An entry is logically absent
// once now - createdAt exceeds the store TTL, whether or not the sweeper
// has reclaimed it yet.
type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Store is a mutex-guarded expiring map. The zero value is not usable;
// construct with [NewStore].
type Store[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration

	sweepDone chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time
}

// NewStore creates a Store whose entries expire after ttl.
func NewStore[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		entries:   make(map[string]entry[V]),
		ttl:       ttl,
		sweepDone: make(chan struct{}),
		now:       time.Now,
	}
}

// Put writes value under key, resetting its age.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, createdAt: s.now()}
}

// Get returns the live value for key. Expired entries behave as absent and
// are evicted on detection.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	if s.now().Sub(e.createdAt) > s.ttl {
		delete(s.entries, key)
		return zero, false
	}
	return e.value, true
}

// Age returns how long ago the live entry for key was written.
func (s *Store[V]) Age(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	age := s.now().Sub(e.createdAt)
	if age > s.ttl {
		delete(s.entries, key)
		return 0, false
	}
	return age, true
}

// Delete removes key if present.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Update applies fn to the live value for key under the store lock. fn
// receives the current value (zero if absent or expired) together with a
// presence flag, and returns the replacement value and whether to keep it.
// Returning keep=false deletes the key. The read-check-write sequence is
// atomic with respect to every other store operation.
func (s *Store[V]) Update(key string, fn func(current V, ok bool) (V, bool)) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current V
	e, ok := s.entries[key]
	if ok && s.now().Sub(e.createdAt) <= s.ttl {
		current = e.value
	} else {
		if ok {
			delete(s.entries, key)
		}
		ok = false
	}

	next, keep := fn(current, ok)
	if !keep {
		delete(s.entries, key)
		return next
	}

	created := s.now()
	if ok {
		// Preserve the window start of a live entry; Update never renews age.
		created = e.createdAt
	}
	s.entries[key] = entry[V]{value: next, createdAt: created}
	return next
}

// Touch rewrites the creation time of a live entry to now.
func (s *Store[V]) Touch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.createdAt = s.now()
		s.entries[key] = e
	}
}

// Len reports the number of physically present entries, expired or not.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every entry older than the store TTL and reports how many
// were reclaimed.
func (s *Store[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.createdAt) > s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until Close is called. At most one
// sweep is in flight at a time; a second StartSweeper call adds another
// timer and is a caller bug.
func (s *Store[V]) StartSweeper(interval time.Duration) {
	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.sweepDone:
				return
			}
		}
	}()
}

// Close stops the sweeper goroutine, if any, and waits for it to exit.
func (s *Store[V]) Close() {
	s.closeOnce.Do(func() {
		close(s.sweepDone)
	})
	s.sweepWG.Wait()
}
