package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// State represents the circuit breaker state.
type State string

const (
	// StateClosed indicates the circuit breaker is closed and requests are allowed.
	StateClosed State = "closed"
	// StateOpen indicates the circuit breaker is open and requests are rejected.
	StateOpen State = "open"
	// StateHalfOpen indicates the circuit breaker is half-open and limited requests are allowed.
	StateHalfOpen State = "half-open"
)

// stateToInt converts State to an integer for metrics.
func stateToInt(s State) int {
	switch s {
	case StateClosed:
		return 0
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// goStateToState converts gobreaker.State to our State type.
func goStateToState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// CircuitBreaker guards an upstream dependency. When the guarded call keeps
// failing, the breaker opens and callers fail fast without touching the
// upstream — for the enrichment worker that turns a dead ClearlyDefined
// into an immediate requeue instead of a held worker slot and a socket
// timeout per attempt.
type CircuitBreaker interface {
	// Do runs fn under breaker protection. It returns ErrCircuitOpen
	// (RES-001) without invoking fn when the circuit is open, and fn's own
	// error otherwise. Whether that error counts against the breaker is
	// the failure classifier's decision, not the caller's.
	Do(ctx context.Context, fn func(ctx context.Context) error) error

	// State returns the current state of the circuit breaker.
	State() State

	// Name returns the name of this circuit breaker.
	Name() string
}

// circuitBreaker wraps gobreaker.CircuitBreaker with metrics and logging.
type circuitBreaker struct {
	name      string
	breaker   *gobreaker.CircuitBreaker
	metrics   *CircuitBreakerMetrics
	logger    *slog.Logger
	isFailure func(error) bool
}

// CircuitBreakerOption configures a circuit breaker.
type CircuitBreakerOption func(*circuitBreakerOptions)

type circuitBreakerOptions struct {
	metrics   *CircuitBreakerMetrics
	logger    *slog.Logger
	isFailure func(error) bool
}

// WithMetrics sets the metrics for the circuit breaker.
func WithMetrics(m *CircuitBreakerMetrics) CircuitBreakerOption {
	return func(o *circuitBreakerOptions) {
		o.metrics = m
	}
}

// WithLogger sets the logger for the circuit breaker.
func WithLogger(l *slog.Logger) CircuitBreakerOption {
	return func(o *circuitBreakerOptions) {
		o.logger = l
	}
}

// WithFailureClassifier decides which errors count against the breaker.
// The guarded call's owner knows its failure modes best: the ClearlyDefined
// client, for example, must not let a caller-cancelled context open the
// circuit against a perfectly healthy upstream.
func WithFailureClassifier(fn func(error) bool) CircuitBreakerOption {
	return func(o *circuitBreakerOptions) {
		o.isFailure = fn
	}
}

// defaultIsFailure counts every error except caller cancellation.
func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// NewCircuitBreaker creates a new circuit breaker with the given name and
// configuration. The breaker opens when the number of consecutive classified
// failures reaches FailureThreshold.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, opts ...CircuitBreakerOption) CircuitBreaker {
	options := &circuitBreakerOptions{
		metrics:   nil,
		logger:    slog.Default(),
		isFailure: defaultIsFailure,
	}

	for _, opt := range opts {
		opt(options)
	}

	cb := &circuitBreaker{
		name:      name,
		metrics:   options.metrics,
		logger:    options.logger,
		isFailure: options.isFailure,
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return !cb.isFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.onStateChange(name, from, to)
		},
	}

	cb.breaker = gobreaker.NewCircuitBreaker(settings)

	// Initialize metrics with closed state
	if cb.metrics != nil {
		cb.metrics.SetState(name, stateToInt(StateClosed))
	}

	return cb
}

// Do runs fn under breaker protection. An open circuit returns
// ErrCircuitOpen immediately; otherwise fn runs and its error, classified
// by the failure classifier, feeds the breaker's counters.
func (cb *circuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()

	_, err := cb.breaker.Execute(func() (any, error) {
		// Check context cancellation before executing
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fn(ctx)
	})

	duration := time.Since(start).Seconds()

	// Open circuit, or half-open with its request budget already spent:
	// either way the call never ran.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if cb.metrics != nil {
			cb.metrics.RecordOperationDuration(cb.name, "rejected", duration)
		}
		return NewCircuitOpenError(err)
	}

	if cb.metrics != nil {
		if cb.isFailure(err) {
			cb.metrics.RecordOperationDuration(cb.name, "failure", duration)
		} else {
			cb.metrics.RecordOperationDuration(cb.name, "success", duration)
		}
	}

	return err
}

// State returns the current state of the circuit breaker.
func (cb *circuitBreaker) State() State {
	return goStateToState(cb.breaker.State())
}

// Name returns the name of this circuit breaker.
func (cb *circuitBreaker) Name() string {
	return cb.name
}

// onStateChange is called when the circuit breaker state changes.
func (cb *circuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	fromState := goStateToState(from)
	toState := goStateToState(to)

	// Update metrics
	if cb.metrics != nil {
		cb.metrics.SetState(name, stateToInt(toState))
		cb.metrics.RecordTransition(name, string(fromState), string(toState))
	}

	// Log state change
	// Use INFO level for significant transitions (closed→open, any→closed)
	// Use DEBUG level for half-open transitions
	logLevel := slog.LevelDebug
	if to == gobreaker.StateOpen || to == gobreaker.StateClosed {
		logLevel = slog.LevelInfo
	}

	cb.logger.Log(context.Background(), logLevel, "circuit breaker state changed",
		"name", name,
		"previous_state", string(fromState),
		"new_state", string(toState),
	)
}

// DefaultCircuitBreakerConfig returns a CircuitBreakerConfig with sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      DefaultCBMaxRequests,
		Interval:         DefaultCBInterval,
		Timeout:          DefaultCBTimeout,
		FailureThreshold: DefaultCBFailureThreshold,
	}
}
