// Package redis provides Redis-based infrastructure implementations: the
// connection client and the ingress-side rate limiter built on top of it
// (an optional throttle in front of Manager.Submit,
// independent of the header-driven RateLimitTracker).
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client with connection validation at construction.
type Client struct {
	rdb *redis.Client
}

// NewClient parses redisURL (e.g. "redis://localhost:6379/0") and verifies
// connectivity with a bounded ping before returning.
func NewClient(redisURL string, pingTimeout time.Duration) (*Client, error) {
	const op = "redis.NewClient"

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse url: %w", op, err)
	}

	rdb := redis.NewClient(opts)

	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis availability. The admin server's readiness check does
// not call it; readiness covers the content-cache database only.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Client returns the underlying go-redis client for direct access, e.g. to
// construct a RedisRateLimiter.
func (c *Client) Client() *redis.Client {
	return c.rdb
}
