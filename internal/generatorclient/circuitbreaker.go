package generatorclient

import (
	"sync"
	"time"
)

// circuitBreaker is per-endpoint state guarded by a mutex, the same
// shape as a hand-rolled sliding-window rate limiter: a handful of
// counters and timestamps that must be read and updated together.
// After 3 consecutive Unreachable results within a 30s window, the
// breaker opens for 15s; the first call after that window is let through
// as a probe.
type circuitBreaker struct {
	mu sync.Mutex

	consecutiveFailures int
	windowStart         time.Time
	openUntil           time.Time
	probing             bool
}

const (
	breakerFailureThreshold = 3
	breakerFailureWindow    = 30 * time.Second
	breakerOpenDuration     = 15 * time.Second
)

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{}
}

// Allow reports whether a call should proceed now. When the breaker is
// open and still within its cooldown, it returns false and the caller
// should short-circuit to Unreachable without attempting the network
// call. Once the cooldown elapses, exactly one call is let through as a
// probe; Allow won't return true again for a second caller until that
// probe's outcome is recorded.
func (b *circuitBreaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openUntil.IsZero() {
		return true
	}
	if now.Before(b.openUntil) {
		return false
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// RecordSuccess closes the breaker and resets failure accounting.
func (b *circuitBreaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.windowStart = time.Time{}
	b.openUntil = time.Time{}
	b.probing = false
}

// RecordUnreachable records one Unreachable outcome and opens the
// breaker if the consecutive-failure threshold is hit within the window.
func (b *circuitBreaker) RecordUnreachable(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.probing {
		// the probe itself failed: reopen immediately.
		b.probing = false
		b.consecutiveFailures = breakerFailureThreshold
		b.windowStart = now
		b.openUntil = now.Add(breakerOpenDuration)
		return
	}

	if b.windowStart.IsZero() || now.Sub(b.windowStart) > breakerFailureWindow {
		b.windowStart = now
		b.consecutiveFailures = 0
	}
	b.consecutiveFailures++

	if b.consecutiveFailures >= breakerFailureThreshold {
		b.openUntil = now.Add(breakerOpenDuration)
	}
}

// RecordOtherFailure records a failure that isn't Unreachable (timeout,
// rejection, etc.). It does not count toward the breaker, which only
// trips on Unreachable; if a probe was in flight, the probe is over and
// the next caller may probe again.
func (b *circuitBreaker) RecordOtherFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}
