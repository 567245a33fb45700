// Package runtimeutil provides runtime utility interfaces for swappable
// infrastructure behind the enrichment manager.
package runtimeutil

import (
	"context"
	"time"
)

// Rate defines a rate limit configuration.
type Rate struct {
	// Limit is the number of admissions allowed within the period.
	Limit int

	// Period is the time window for the rate limit.
	Period time.Duration
}

// NewRate creates a new Rate with the given limit and period.
func NewRate(limit int, period time.Duration) Rate {
	return Rate{Limit: limit, Period: period}
}

// RateLimiter is the ingress-throttle abstraction in front of
// Manager.Submit. The manager polls Allow until the submission is
// admitted, so implementations answer "now or not yet" rather than
// erroring; a limiter error is treated by the manager as admission
// (fail-open) so a broken backend never stalls enrichment.
//
// Usage in the manager:
//
//	admitted, err := throttle.Allow(ctx, "enrichment-submit")
//	if err != nil || admitted {
//	    // enqueue the request
//	}
//	// otherwise sleep briefly and ask again
//
// The Redis-backed implementation lives in internal/infra/redis; when no
// Redis is configured the manager runs with NopRateLimiter and submissions
// are bounded only by the server-header-driven tracker downstream.
type RateLimiter interface {
	// Allow checks whether the bucket for key has budget for one more
	// admission. Returns true to admit, false to hold the caller.
	Allow(ctx context.Context, key string) (bool, error)

	// Limit sets the rate for the given bucket.
	// All submissions share one bucket today; per-caller buckets would
	// configure themselves through this.
	Limit(ctx context.Context, key string, rate Rate) error
}

// NopRateLimiter admits everything. It is the wiring default when no
// REDIS_URL is configured, and keeps tests free of throttle timing.
type NopRateLimiter struct{}

// NewNopRateLimiter creates a new NopRateLimiter.
func NewNopRateLimiter() RateLimiter {
	return &NopRateLimiter{}
}

// Allow always admits.
func (r *NopRateLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return true, nil
}

// Limit is a no-op and always returns nil.
func (r *NopRateLimiter) Limit(_ context.Context, _ string, _ Rate) error {
	return nil
}
