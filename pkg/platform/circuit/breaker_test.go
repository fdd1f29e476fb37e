package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("claims")
	assert.Equal(t, "claims", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
}

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	b := New("claims", WithFailureThreshold(3))

	for range 2 {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// Further failures keep it open without reporting another transition.
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestBreaker_ClosesAtSuccessThreshold(t *testing.T) {
	b := New("claims", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_OppositeOutcomeResetsCounters(t *testing.T) {
	t.Run("success clears accumulated failures", func(t *testing.T) {
		b := New("claims", WithFailureThreshold(3))

		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()

		b.RecordFailure()
		b.RecordFailure()
		assert.False(t, b.IsOpen(), "the streak restarted after the success")
		b.RecordFailure()
		assert.True(t, b.IsOpen())
	})

	t.Run("failure clears accumulated successes", func(t *testing.T) {
		b := New("claims", WithFailureThreshold(1), WithSuccessThreshold(3))

		b.RecordFailure()
		b.RecordSuccess()
		b.RecordSuccess()
		b.RecordFailure()

		b.RecordSuccess()
		b.RecordSuccess()
		assert.True(t, b.IsOpen(), "the streak restarted after the failure")
		b.RecordSuccess()
		assert.False(t, b.IsOpen())
	})
}

func TestBreaker_Reset(t *testing.T) {
	b := New("claims", WithFailureThreshold(1))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
}
