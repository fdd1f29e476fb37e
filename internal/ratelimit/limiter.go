// Package ratelimit provides sliding-window request limiting for the API
// surface. The tenant surface is limited per tenant so one noisy integration
// cannot crowd out others; the credential exchange endpoint is limited per
// client IP to slow down key guessing.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of one limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter tracks request timestamps per key over a sliding window. The
// window slides continuously, so a burst at the end of one minute cannot be
// followed immediately by a full budget at the start of the next.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	clock   func() time.Time
}

// NewLimiter constructs a Limiter allowing limit requests per window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		clock:   time.Now,
	}
}

// Allow records a request against the key and reports whether it fits the
// budget. Denied requests are not recorded.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	kept := prune(l.buckets[key], now.Add(-l.window))

	if len(kept) >= l.limit {
		l.buckets[key] = kept
		return Result{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			ResetAt:   kept[0].Add(l.window),
		}
	}

	kept = append(kept, now)
	l.buckets[key] = kept
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}
}

// Reset clears the key's history.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(timestamps) && !timestamps[idx].After(cutoff) {
		idx++
	}
	return timestamps[idx:]
}
