//go:build integration

package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyd/pkg/testutil/containers"
)

func TestRedisClaimer(t *testing.T) {
	ctx := context.Background()
	redis := containers.GetManager().GetRedis(t)
	claimer := NewRedisClaimer(redis.Client)

	t.Run("claim is exclusive until released", func(t *testing.T) {
		claimed, err := claimer.Claim(ctx, "webhook:claim:itest-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = claimer.Claim(ctx, "webhook:claim:itest-1", time.Minute)
		require.NoError(t, err)
		assert.False(t, claimed)

		claimer.Release(ctx, "webhook:claim:itest-1")
		claimed, err = claimer.Claim(ctx, "webhook:claim:itest-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("claim expires with its TTL", func(t *testing.T) {
		claimed, err := claimer.Claim(ctx, "webhook:claim:itest-2", 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, claimed)

		assert.Eventually(t, func() bool {
			claimed, err := claimer.Claim(ctx, "webhook:claim:itest-2", time.Minute)
			return err == nil && claimed
		}, 2*time.Second, 50*time.Millisecond, "expired claim should be reclaimable")
	})

	t.Run("distinct keys do not contend", func(t *testing.T) {
		a, err := claimer.Claim(ctx, "webhook:claim:itest-3a", time.Minute)
		require.NoError(t, err)
		b, err := claimer.Claim(ctx, "webhook:claim:itest-3b", time.Minute)
		require.NoError(t, err)
		assert.True(t, a)
		assert.True(t, b)
	})
}
