package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"complyd/pkg/platform/circuit"
)

// FailoverClaimer guards the distributed claimer with a circuit breaker.
// When Redis fails repeatedly, claims fall back to process-local arbitration
// so delivery keeps flowing; other instances may then attempt the same
// delivery, which the store's attempt arbitration resolves. Claim errors are
// an availability problem, never a correctness one.
type FailoverClaimer struct {
	primary  Claimer
	fallback Claimer
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFailoverClaimer(primary, fallback Claimer, logger *slog.Logger) *FailoverClaimer {
	return &FailoverClaimer{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("delivery-claims"),
		logger:   logger,
	}
}

func (c *FailoverClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if c.breaker.IsOpen() {
		claimed, err := c.primary.Claim(ctx, key, ttl)
		if err == nil {
			if usePrimary, change := c.breaker.RecordSuccess(); usePrimary {
				if change.Closed {
					c.logger.InfoContext(ctx, "claim backend recovered, resuming distributed claims")
				}
				return claimed, nil
			}
			// Not enough consecutive successes yet; stay on the fallback so
			// a half-recovered backend does not split claim arbitration.
			return c.fallback.Claim(ctx, key, ttl)
		}
		c.breaker.RecordFailure()
		return c.fallback.Claim(ctx, key, ttl)
	}

	claimed, err := c.primary.Claim(ctx, key, ttl)
	if err == nil {
		c.breaker.RecordSuccess()
		return claimed, nil
	}

	useFallback, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "claim backend failing, falling back to local claims", "error", err)
	}
	if useFallback {
		return c.fallback.Claim(ctx, key, ttl)
	}
	return false, err
}

func (c *FailoverClaimer) Release(ctx context.Context, key string) {
	// Release on both sides: a claim taken before the breaker flipped may
	// live in either backend.
	c.primary.Release(ctx, key)
	c.fallback.Release(ctx, key)
}
