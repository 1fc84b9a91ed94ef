// Package rate implements fixed-window request counting keyed by client IP.
//
// All tiers share one algorithm; the login tier adds sticky lockout: once
// the threshold is hit the counter freezes until its window elapses, so an
// attacker cannot extend the lock by continuing to guess.
package rate

import (
	"math"
	"time"

	"github.com/pathpal/pathpal/internal/kv"
)

// Config holds one tier's budget.
type Config struct {
	Max    int
	Window time.Duration
}

// Result is the outcome of a single admission check.
type Result struct {
	Allowed bool
	// RetryAfterMinutes is the advertised wait, in whole minutes rounded
	// up, when Allowed is false.
	RetryAfterMinutes int
}

type counter struct {
	count       int
	windowStart time.Time
	locked      bool
}

// Limiter is one windowed-counter tier. Counters live in an expiring store
// whose TTL equals the window, so abandoned IPs age out on their own.
type Limiter struct {
	cfg     Config
	store   *kv.Store[counter]
	lockout bool
	now     func() time.Time
}

// NewLimiter creates a plain fixed-window tier.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		cfg:   cfg,
		store: kv.NewStore[counter](cfg.Window),
		now:   time.Now,
	}
}

// NewSharedLimiter creates a tier that counts on base's store under its
// own budget, so both tiers meter the same traffic with different caps.
// The shared store keeps base's TTL; callers should give both tiers the
// same window.
func NewSharedLimiter(base *Limiter, cfg Config) *Limiter {
	return &Limiter{
		cfg:   cfg,
		store: base.store,
		now:   time.Now,
	}
}

// NewLockoutLimiter creates a login tier: reaching the budget locks the
// counter for the remainder of its window.
func NewLockoutLimiter(cfg Config) *Limiter {
	l := NewLimiter(cfg)
	l.lockout = true
	return l
}

// Allow records one request from ip and reports whether it may proceed.
func (l *Limiter) Allow(ip string) Result {
	if l.lockout {
		return l.allowLockout(ip)
	}

	now := l.now()
	var rejected counter
	updated := l.store.Update(ip, func(c counter, ok bool) (counter, bool) {
		if !ok || now.Sub(c.windowStart) > l.cfg.Window {
			return counter{count: 1, windowStart: now}, true
		}
		c.count++
		rejected = c
		return c, true
	})

	if updated.count > l.cfg.Max {
		return Result{RetryAfterMinutes: l.remainingMinutes(rejected.windowStart, now)}
	}
	return Result{Allowed: true}
}

func (l *Limiter) allowLockout(ip string) Result {
	now := l.now()
	var out Result
	l.store.Update(ip, func(c counter, ok bool) (counter, bool) {
		if !ok || now.Sub(c.windowStart) > l.cfg.Window {
			out = Result{Allowed: true}
			return counter{count: 1, windowStart: now}, true
		}
		if c.locked {
			// Frozen: no count or window change until the window expires.
			out = Result{RetryAfterMinutes: l.remainingMinutes(c.windowStart, now)}
			return c, true
		}
		if c.count+1 >= l.cfg.Max {
			c.count = l.cfg.Max
			c.locked = true
			out = Result{RetryAfterMinutes: l.remainingMinutes(c.windowStart, now)}
			return c, true
		}
		c.count++
		out = Result{Allowed: true}
		return c, true
	})
	return out
}

func (l *Limiter) remainingMinutes(windowStart, now time.Time) int {
	remaining := l.cfg.Window - now.Sub(windowStart)
	if remaining < 0 {
		remaining = 0
	}
	return int(math.Ceil(remaining.Minutes()))
}

// StartSweeper reclaims expired counters every window length.
func (l *Limiter) StartSweeper() {
	l.store.StartSweeper(l.cfg.Window)
}

// Close stops the sweeper.
func (l *Limiter) Close() {
	l.store.Close()
}
