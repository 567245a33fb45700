// Package middleware provides HTTP middleware for the transport layer.
// This file implements per-client-IP rate limiting middleware.
package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/p2repo/cdenrich/internal/transport/http/contract"
)

// DefaultRateLimitWindow is the default time window for rate limiting.
const DefaultRateLimitWindow = time.Second

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the number of requests allowed per window.
	// Values <= 0 are replaced by 10.
	RequestsPerSecond int

	// Window is the time window for rate limiting.
	// Optional (default: 1 second).
	Window time.Duration
}

// RateLimiter returns middleware that limits requests per client IP, guarding
// the admin HTTP surface against accidental hammering by monitoring scripts.
//
// The middleware sets the following headers on ALL responses:
//   - X-RateLimit-Limit: Maximum requests allowed per window
//   - X-RateLimit-Remaining: Remaining requests in current window
//   - X-RateLimit-Reset: Unix timestamp when limit resets
//
// When rate limit is exceeded (429), additional headers are set:
//   - Retry-After: Seconds until retry is allowed
//
// IP resolution relies on the RealIP middleware the admin router applies to
// every request.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	// Validate config
	if cfg.RequestsPerSecond <= 0 {
		// Log warning or set sensible default? For middleware, usually panic on invalid startup config
		// or log. Here we'll default to 10 to ensure safety if not provided.
		// A panic might be better to signal misconfiguration, but let's be safe.
		cfg.RequestsPerSecond = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}

	return httprate.Limit(
		cfg.RequestsPerSecond,
		cfg.Window,
		httprate.WithKeyFuncs(keyFunc()),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			contract.WriteProblem(w, contract.NewProblemForCode(r, contract.CodeRateLimitExceeded))
		}),
		httprate.WithResponseHeaders(httprate.ResponseHeaders{
			Limit:      "X-RateLimit-Limit",
			Remaining:  "X-RateLimit-Remaining",
			Reset:      "X-RateLimit-Reset",
			RetryAfter: "Retry-After",
		}),
	)
}

// keyFunc returns the rate limit key based on client IP.
func keyFunc() httprate.KeyFunc {
	return func(r *http.Request) (string, error) {
		return "ip:" + resolveClientIP(r), nil
	}
}

// resolveClientIP extracts the client IP address from the request.
// It relies on r.RemoteAddr, which the router-wide RealIP middleware rewrites
// from the client-IP proxy headers when those are present.
func resolveClientIP(r *http.Request) string {
	// RemoteAddr format is "ip:port" (default) or "ip" (if RealIP ran)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If SplitHostPort fails (e.g. valid IP with no port), use as is
		return r.RemoteAddr
	}
	return ip
}
