package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(limit, window)
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }
	return l, &now
}

func TestLimiter_AllowsWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := range 3 {
		result := l.Allow("tenant-a")
		assert.True(t, result.Allowed)
		assert.Equal(t, 3, result.Limit)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result := l.Allow("tenant-a")
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
}

func TestLimiter_DeniedRequestsDoNotConsumeBudget(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)

	assert.True(t, l.Allow("k").Allowed)
	for range 5 {
		assert.False(t, l.Allow("k").Allowed)
	}

	// Only the single allowed request occupies the window; once it slides
	// out the budget is whole again.
	*now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("k").Allowed)
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)

	assert.True(t, l.Allow("k").Allowed)
	*now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("k").Allowed)
	assert.False(t, l.Allow("k").Allowed)

	// The first request leaves the window; the second is still inside.
	*now = now.Add(31 * time.Second)
	result := l.Allow("k")
	assert.True(t, result.Allowed)
	assert.False(t, l.Allow("k").Allowed)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.Allow("tenant-a").Allowed)
	assert.False(t, l.Allow("tenant-a").Allowed)
	assert.True(t, l.Allow("tenant-b").Allowed)
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.Allow("k").Allowed)
	assert.False(t, l.Allow("k").Allowed)

	l.Reset("k")
	assert.True(t, l.Allow("k").Allowed)
}

func TestLimiter_ResetAtTracksOldestRequest(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)
	start := *now

	l.Allow("k")
	*now = now.Add(10 * time.Second)
	result := l.Allow("k")
	assert.Equal(t, start.Add(time.Minute), result.ResetAt)
}
