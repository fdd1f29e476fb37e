// Package redis connects the process to the Redis instance backing
// distributed delivery claims.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"complyd/internal/platform/config"
)

// Client wraps the go-redis client with a readiness check for /healthz.
type Client struct {
	*redis.Client
}

// New connects and verifies the connection. Returns nil when no URL is
// configured; callers treat that as "claims are process-local".
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection is usable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
