// Package metrics holds the shared recording contracts between the admin
// transport and the observability wiring.
package metrics

// HTTPMetrics is the minimal contract the admin router's metrics
// middleware needs to record per-request series (http_requests_total,
// http_request_duration_seconds, http_response_size_bytes). Keeping it in a shared package means
// the transport layer never imports infra/observability, which owns the
// Prometheus implementation.
type HTTPMetrics interface {
	IncRequest(method, route, status string)
	ObserveRequestDuration(method, route string, seconds float64)
	ObserveResponseSize(method, route string, bytes float64)
}
