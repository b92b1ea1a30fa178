package backpressure

import (
	"sync"
	"time"
)

// Clock lets tests drive the sliding window with a simulated time source.
type Clock func() time.Time

// RateLimiter is a sliding-window call budget. Timestamps older than the
// window are evicted on every acquire; state is guarded by a single mutex
// per limiter instance.
type RateLimiter struct {
	maxCalls int
	window   time.Duration
	now      Clock

	mu    sync.Mutex
	calls []time.Time
}

// NewRateLimiter creates a limiter allowing maxCalls per window.
func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (l *RateLimiter) WithClock(clock Clock) *RateLimiter {
	l.now = clock
	return l
}

// Acquire tries to take a call slot. It returns false when the budget
// for the current window is exhausted.
func (l *RateLimiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if len(l.calls) >= l.maxCalls {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// WaitTime returns how long until the next slot frees up. Zero when a
// slot is available now.
func (l *RateLimiter) WaitTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if len(l.calls) < l.maxCalls {
		return 0
	}
	wait := l.window - now.Sub(l.calls[0])
	if wait < 0 {
		return 0
	}
	return wait
}

// evict drops timestamps that fell out of the window. A call aged
// exactly one window is still inside it. Caller holds mu.
func (l *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && l.calls[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
