package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClaimer arbitrates claims with SET NX so only one dispatcher
// instance attempts a delivery at a time. The TTL keeps a crashed instance
// from holding claims forever.
type RedisClaimer struct {
	client *redis.Client
}

func NewRedisClaimer(client *redis.Client) *RedisClaimer {
	return &RedisClaimer{client: client}
}

func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, "1", ttl).Result()
}

func (c *RedisClaimer) Release(ctx context.Context, key string) {
	// Best effort; the TTL cleans up after a failed delete.
	_ = c.client.Del(ctx, key).Err()
}

// LocalClaimer arbitrates claims within a single process. Used when Redis
// is not configured (single-instance deployments, tests).
type LocalClaimer struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func NewLocalClaimer() *LocalClaimer {
	return &LocalClaimer{claims: make(map[string]time.Time)}
}

func (c *LocalClaimer) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if expires, held := c.claims[key]; held && now.Before(expires) {
		return false, nil
	}
	c.claims[key] = now.Add(ttl)
	return true, nil
}

func (c *LocalClaimer) Release(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, key)
}
