package session

import (
	"sync"
	"time"
)

// LoginGuard is the capability the orchestrator uses to throttle login
// attempts. It is injected so a multi-instance deployment can swap the
// process-local implementation for a shared store without touching callers.
type LoginGuard interface {
	// Check reports whether logins for email are currently blocked and, if
	// so, for how long.
	Check(email string, now time.Time) (blocked bool, retryAfter time.Duration)

	// RecordFailure notes one failed attempt for email at time now.
	RecordFailure(email string, now time.Time)

	// Clear drops all recorded attempts for email.
	Clear(email string)
}

// MemoryLoginGuard is a process-local sliding-window guard over failed login
// attempts. It is NOT safe across multiple process instances; deployments
// with more than one instance need a shared-store implementation.
type MemoryLoginGuard struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	failures map[string][]time.Time
}

// NewMemoryLoginGuard constructs a guard with safe defaults when inputs are
// invalid.
func NewMemoryLoginGuard(limit int, window time.Duration) *MemoryLoginGuard {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &MemoryLoginGuard{
		window:   window,
		limit:    limit,
		failures: make(map[string][]time.Time),
	}
}

// Check prunes attempts older than the window and reports whether the
// remaining failures reach the limit.
func (g *MemoryLoginGuard) Check(email string, now time.Time) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept := g.prune(email, now)
	if len(kept) < g.limit {
		return false, 0
	}

	// The block lifts when the oldest counted failure ages out.
	retryAfter := kept[0].Add(g.window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return true, retryAfter
}

// RecordFailure appends one failed attempt.
func (g *MemoryLoginGuard) RecordFailure(email string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures[email] = append(g.prune(email, now), now)
}

// Clear resets the counter for email.
func (g *MemoryLoginGuard) Clear(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.failures, email)
}

// prune drops attempts outside the window. Caller holds the lock.
func (g *MemoryLoginGuard) prune(email string, now time.Time) []time.Time {
	cut := now.Add(-g.window)
	dst := g.failures[email][:0]
	for _, t := range g.failures[email] {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	if len(dst) == 0 {
		delete(g.failures, email)
		return nil
	}
	g.failures[email] = dst
	return dst
}
