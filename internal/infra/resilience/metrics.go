package resilience

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CircuitBreakerMetrics exposes the upstream guard's behavior to Prometheus.
// The enrichment service runs a single breaker (the ClearlyDefined GET), but
// every series still carries the breaker name so a second guarded upstream
// would not collide.
type CircuitBreakerMetrics struct {
	// state tracks the current state of each circuit breaker using {name, state} labels.
	// Each state (closed, open, half-open) is a separate time series with value 1 (active) or 0 (inactive).
	state *prometheus.GaugeVec

	// transitions counts state transitions. A climbing closed→open count is
	// the first signal that requeue traffic is breaker-driven rather than
	// rate-limit-driven.
	transitions *prometheus.CounterVec

	// operationDuration measures guarded round trips by result
	// (success, failure, rejected). Rejected observations are near-zero by
	// construction: the call never left the process.
	operationDuration *prometheus.HistogramVec
}

// NewCircuitBreakerMetrics creates and registers circuit breaker metrics with the given registry.
// If registry is nil, a new registry is created.
func NewCircuitBreakerMetrics(registry *prometheus.Registry) *CircuitBreakerMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (1=active, 0=inactive for each state label)",
		},
		[]string{"name", "state"},
	)

	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "circuit_breaker_operation_duration_seconds",
			Help: "Duration of upstream round trips executed through the circuit breaker",
			Buckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		[]string{"name", "result"},
	)

	// Register errors are intentionally ignored: they mean the series
	// already exist, which happens when tests build several breakers
	// against one registry.
	_ = registry.Register(state)
	_ = registry.Register(transitions)
	_ = registry.Register(operationDuration)

	return &CircuitBreakerMetrics{
		state:             state,
		transitions:       transitions,
		operationDuration: operationDuration,
	}
}

// SetState updates the state gauge for a circuit breaker.
// Sets the active state to 1 and all other states to 0.
// state: 0=closed, 1=open, 2=half-open
func (m *CircuitBreakerMetrics) SetState(name string, state int) {
	m.state.WithLabelValues(name, "closed").Set(0)
	m.state.WithLabelValues(name, "open").Set(0)
	m.state.WithLabelValues(name, "half-open").Set(0)

	switch state {
	case 0:
		m.state.WithLabelValues(name, "closed").Set(1)
	case 1:
		m.state.WithLabelValues(name, "open").Set(1)
	case 2:
		m.state.WithLabelValues(name, "half-open").Set(1)
	}
}

// RecordTransition increments the transition counter for a circuit breaker.
func (m *CircuitBreakerMetrics) RecordTransition(name, from, to string) {
	m.transitions.WithLabelValues(name, from, to).Inc()
}

// RecordOperationDuration records the duration of a guarded round trip.
// result should be one of: "success", "failure", "rejected"
func (m *CircuitBreakerMetrics) RecordOperationDuration(name, result string, durationSeconds float64) {
	m.operationDuration.WithLabelValues(name, result).Observe(durationSeconds)
}

// Reset resets all metrics. Useful for testing.
func (m *CircuitBreakerMetrics) Reset() {
	m.state.Reset()
	m.transitions.Reset()
	m.operationDuration.Reset()
}

// RetryMetrics exposes the content-cache retrier's behavior to Prometheus.
type RetryMetrics struct {
	// operations counts retry runs by terminal result
	// (success, failure, exhausted) with the total attempt count.
	operations *prometheus.CounterVec

	// duration measures whole retry runs, backoff sleeps included.
	duration *prometheus.HistogramVec
}

// NewRetryMetrics creates and registers retry metrics with the given registry.
// If registry is nil, a new registry is created.
func NewRetryMetrics(registry *prometheus.Registry) *RetryMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_operations_total",
			Help: "Total retry runs by terminal result and attempt count",
		},
		[]string{"name", "result", "attempts"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retry_operation_duration_seconds",
			Help:    "Duration of whole retry runs, backoff included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name", "result"},
	)

	_ = registry.Register(operations)
	_ = registry.Register(duration)

	return &RetryMetrics{operations: operations, duration: duration}
}

// RecordOperation records one finished retry run.
// result should be one of: "success", "failure", "exhausted"
func (m *RetryMetrics) RecordOperation(name, result string, attempts int, durationSeconds float64) {
	m.operations.WithLabelValues(name, result, strconv.Itoa(attempts)).Inc()
	m.duration.WithLabelValues(name, result).Observe(durationSeconds)
}

// Reset resets all metrics. Useful for testing.
func (m *RetryMetrics) Reset() {
	m.operations.Reset()
	m.duration.Reset()
}

// NoopRetryMetrics returns metrics bound to a throwaway registry.
func NoopRetryMetrics() *RetryMetrics {
	return NewRetryMetrics(prometheus.NewRegistry())
}

// TimeoutMetrics exposes the content-cache statement timeout's behavior.
type TimeoutMetrics struct {
	// operations measures bounded operations by result (success, timeout, error).
	operations *prometheus.HistogramVec
}

// NewTimeoutMetrics creates and registers timeout metrics with the given registry.
// If registry is nil, a new registry is created.
func NewTimeoutMetrics(registry *prometheus.Registry) *TimeoutMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	operations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timeout_operation_duration_seconds",
			Help:    "Duration of operations run under a timeout, by result",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name", "result"},
	)

	_ = registry.Register(operations)

	return &TimeoutMetrics{operations: operations}
}

// RecordOperation records one bounded operation.
// result should be one of: "success", "timeout", "error"
func (m *TimeoutMetrics) RecordOperation(name, result string, durationSeconds float64) {
	m.operations.WithLabelValues(name, result).Observe(durationSeconds)
}

// Reset resets all metrics. Useful for testing.
func (m *TimeoutMetrics) Reset() {
	m.operations.Reset()
}

// NoopTimeoutMetrics returns metrics bound to a throwaway registry.
func NoopTimeoutMetrics() *TimeoutMetrics {
	return NewTimeoutMetrics(prometheus.NewRegistry())
}

// BulkheadMetrics exposes the worker pool's admission gate to Prometheus.
// Active and waiting gauges mirror what the coordinator is allowed to see:
// how many enrichment workers run and how many admitted requests queue
// behind the pool.
type BulkheadMetrics struct {
	active     *prometheus.GaugeVec
	waiting    *prometheus.GaugeVec
	operations *prometheus.CounterVec
	waitTime   *prometheus.HistogramVec
}

// NewBulkheadMetrics creates and registers bulkhead metrics with the given registry.
// If registry is nil, a new registry is created.
func NewBulkheadMetrics(registry *prometheus.Registry) *BulkheadMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	active := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_active",
			Help: "Executions currently holding a bulkhead slot",
		},
		[]string{"name"},
	)

	waiting := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_waiting",
			Help: "Operations waiting for a bulkhead slot",
		},
		[]string{"name"},
	)

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_operations_total",
			Help: "Total operations by result (success, rejected, error, cancelled)",
		},
		[]string{"name", "result"},
	)

	waitTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkhead_wait_duration_seconds",
			Help:    "Time spent waiting for a bulkhead slot",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"name"},
	)

	_ = registry.Register(active)
	_ = registry.Register(waiting)
	_ = registry.Register(operations)
	_ = registry.Register(waitTime)

	return &BulkheadMetrics{
		active:     active,
		waiting:    waiting,
		operations: operations,
		waitTime:   waitTime,
	}
}

// SetActive updates the active-executions gauge.
func (m *BulkheadMetrics) SetActive(name string, n int) {
	m.active.WithLabelValues(name).Set(float64(n))
}

// SetWaiting updates the waiting-operations gauge.
func (m *BulkheadMetrics) SetWaiting(name string, n int) {
	m.waiting.WithLabelValues(name).Set(float64(n))
}

// RecordOperation counts one finished operation by result.
func (m *BulkheadMetrics) RecordOperation(name, result string) {
	m.operations.WithLabelValues(name, result).Inc()
}

// RecordWaitDuration records how long an operation waited for a slot.
func (m *BulkheadMetrics) RecordWaitDuration(name string, seconds float64) {
	m.waitTime.WithLabelValues(name).Observe(seconds)
}

// Reset resets all metrics. Useful for testing.
func (m *BulkheadMetrics) Reset() {
	m.active.Reset()
	m.waiting.Reset()
	m.operations.Reset()
	m.waitTime.Reset()
}

// NoopBulkheadMetrics returns metrics bound to a throwaway registry.
func NoopBulkheadMetrics() *BulkheadMetrics {
	return NewBulkheadMetrics(prometheus.NewRegistry())
}

// ShutdownMetrics exposes the admin server's drain behavior.
type ShutdownMetrics struct {
	activeRequests     prometheus.Gauge
	shutdownInProgress prometheus.Gauge
	rejections         prometheus.Counter
	shutdownDuration   *prometheus.HistogramVec
}

// NewShutdownMetrics creates and registers shutdown metrics with the given registry.
// If registry is nil, a new registry is created.
func NewShutdownMetrics(registry *prometheus.Registry) *ShutdownMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	activeRequests := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shutdown_active_requests",
		Help: "In-flight admin requests tracked by the shutdown coordinator",
	})

	shutdownInProgress := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shutdown_in_progress",
		Help: "1 while a graceful shutdown drain is running",
	})

	rejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shutdown_rejected_requests_total",
		Help: "Requests rejected because shutdown had already been initiated",
	})

	shutdownDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shutdown_drain_duration_seconds",
			Help:    "Duration of the drain phase by result (success, timeout)",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"result"},
	)

	_ = registry.Register(activeRequests)
	_ = registry.Register(shutdownInProgress)
	_ = registry.Register(rejections)
	_ = registry.Register(shutdownDuration)

	return &ShutdownMetrics{
		activeRequests:     activeRequests,
		shutdownInProgress: shutdownInProgress,
		rejections:         rejections,
		shutdownDuration:   shutdownDuration,
	}
}

// SetActiveRequests updates the in-flight request gauge.
func (m *ShutdownMetrics) SetActiveRequests(n int64) {
	m.activeRequests.Set(float64(n))
}

// SetShutdownInProgress flags whether a drain is running.
func (m *ShutdownMetrics) SetShutdownInProgress(inProgress bool) {
	if inProgress {
		m.shutdownInProgress.Set(1)
	} else {
		m.shutdownInProgress.Set(0)
	}
}

// RecordRejection counts a request rejected during shutdown.
func (m *ShutdownMetrics) RecordRejection() {
	m.rejections.Inc()
}

// RecordShutdownDuration records one completed drain phase.
// result should be one of: "success", "timeout"
func (m *ShutdownMetrics) RecordShutdownDuration(d time.Duration, result string) {
	m.shutdownDuration.WithLabelValues(result).Observe(d.Seconds())
}
