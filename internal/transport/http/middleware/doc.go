// Package middleware provides HTTP middleware for the admin transport layer.
//
// This package contains reusable middleware components for the Chi router
// that implement cross-cutting concerns like request identification, rate
// limiting, logging, and graceful shutdown for the admin surface.
//
// # Middleware Ordering
//
// Middleware should be applied in this specific order (outermost to innermost execution):
//
//  1. RequestID      - Assigns unique request ID for tracing
//  2. Logger         - Logs request/response with timing
//  3. Recoverer      - Catches panics and returns 500 response
//  4. Shutdown       - Rejects new requests during graceful shutdown
//  5. RateLimiter    - Enforces rate limits per IP
//
// # Chi Router Integration
//
// Apply middleware using Chi's Use method:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	r.Use(middleware.RequestLogger(logger))
//	r.Use(middleware.Recoverer(logger))
//	r.Use(middleware.RateLimiter(cfg))
//
// # Available Middleware
//
// Observability:
//   - RequestID: Generates unique request IDs (X-Request-ID header)
//   - RequestLogger: Structured logging with request/response timing
//   - Metrics: Prometheus metrics for HTTP requests
//   - Tracing: OpenTelemetry distributed tracing spans
//
// Resilience:
//   - Shutdown: Graceful shutdown with request draining
//   - Recoverer: Panic recovery with RFC 7807 error response
//   - RateLimiter: Per-IP rate limiting with RFC 7807 responses,
//     X-RateLimit-* headers and Retry-After on 429
//
// Security:
//   - Security: OWASP-recommended security headers
//   - BodyLimiter: Request body size limits
//
// # Error Responses
//
// All middleware use RFC 7807 Problem Details format for error responses
// via the contract package. Example 429 response:
//
//	{
//	    "type": "https://cdenrich.example.com/problems/rate-limit-exceeded",
//	    "title": "Rate Limit Exceeded",
//	    "status": 429,
//	    "code": "RATE-001",
//	    "request_id": "req_abc123"
//	}
//
// # See Also
//
//   - Chi router documentation: https://github.com/go-chi/chi
//   - contract package: RFC 7807 error responses
package middleware
