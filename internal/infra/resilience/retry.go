package resilience

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Retrier retries a failing operation with exponential backoff and jitter.
// In this service it sits under the content-cache's Postgres queries: a
// dropped connection on a cache read must not surface as a cache failure
// when the pool can re-establish it within a few hundred milliseconds.
//
// The enrichment fetch path deliberately does NOT use a Retrier — retryable
// HTTP outcomes are requeued through the coordinator, which is the only
// component allowed to schedule another attempt against the rate limit.
type Retrier interface {
	// Do executes the given function with retry logic.
	// It returns the last error if all attempts fail (wrapped as RES-004).
	Do(ctx context.Context, fn func(ctx context.Context) error) error

	// Name returns the name of this retrier for metrics/logging.
	Name() string
}

// retrier wraps go-retry with metrics and logging.
type retrier struct {
	name            string
	cfg             RetryConfig
	metrics         *RetryMetrics
	logger          *slog.Logger
	isRetryableFunc func(error) bool
}

// RetrierOption configures a retrier.
type RetrierOption func(*retrierOptions)

type retrierOptions struct {
	metrics         *RetryMetrics
	logger          *slog.Logger
	isRetryableFunc func(error) bool
}

// WithRetryMetrics sets the metrics for the retrier.
func WithRetryMetrics(m *RetryMetrics) RetrierOption {
	return func(o *retrierOptions) {
		o.metrics = m
	}
}

// WithRetryLogger sets the logger for the retrier.
// If l is nil, the default logger (slog.Default()) will be used.
func WithRetryLogger(l *slog.Logger) RetrierOption {
	return func(o *retrierOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRetryableFunc replaces the database-oriented default classifier.
// If fn is nil, the default (DatabaseIsRetryable) is kept.
func WithRetryableFunc(fn func(error) bool) RetrierOption {
	return func(o *retrierOptions) {
		if fn != nil {
			o.isRetryableFunc = fn
		}
	}
}

// NewRetrier creates a new retrier with the given name and configuration.
//
// Note: the underlying go-retry library uses base-2 exponential backoff
// (delay doubles each attempt). RetryConfig.Multiplier is validated but not
// consumed here — the multiplier is always 2.0.
func NewRetrier(name string, cfg RetryConfig, opts ...RetrierOption) Retrier {
	options := &retrierOptions{
		metrics:         nil,
		logger:          slog.Default(),
		isRetryableFunc: DatabaseIsRetryable,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &retrier{
		name:            name,
		cfg:             cfg,
		metrics:         options.metrics,
		logger:          options.logger,
		isRetryableFunc: options.isRetryableFunc,
	}
}

// Do executes the given function with retry logic.
// It uses exponential backoff with jitter to determine retry delays.
// Context cancellation is respected and will stop retries immediately.
func (r *retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempt := 0
	var lastErr error

	// Exponential backoff from the initial delay, with jitter to keep the
	// eight workers' cache writes from retrying in lockstep, capped at the
	// max delay, bounded to MaxAttempts-1 retries (the first attempt is
	// not a retry).
	backoff := retry.NewExponential(r.cfg.InitialDelay)

	jitterDuration := r.cfg.InitialDelay / 4
	backoff = retry.WithJitter(jitterDuration, backoff)

	backoff = retry.WithCappedDuration(r.cfg.MaxDelay, backoff)

	var maxRetries uint64
	if r.cfg.MaxAttempts > 1 {
		maxRetries = uint64(r.cfg.MaxAttempts - 1)
	}
	backoff = retry.WithMaxRetries(maxRetries, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		operationErr := fn(ctx)

		if operationErr == nil {
			return nil
		}

		lastErr = operationErr

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !r.isRetryableFunc(operationErr) {
			r.logger.Debug("non-retryable error, stopping retry",
				"name", r.name,
				"attempt", attempt,
				"error", operationErr,
			)
			return operationErr
		}

		r.logger.Debug("operation failed, will retry",
			"name", r.name,
			"attempt", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"error", operationErr,
		)

		return retry.RetryableError(operationErr)
	})

	duration := time.Since(start)

	if err == nil {
		if r.metrics != nil {
			r.metrics.RecordOperation(r.name, "success", attempt, duration.Seconds())
		}
		if attempt > 1 {
			r.logger.Info("operation succeeded after retry",
				"name", r.name,
				"total_attempts", attempt,
				"duration_ms", duration.Milliseconds(),
			)
		}
		return nil
	}

	if attempt >= r.cfg.MaxAttempts {
		if r.metrics != nil {
			r.metrics.RecordOperation(r.name, "exhausted", attempt, duration.Seconds())
		}
		r.logger.Warn("max retries exceeded",
			"name", r.name,
			"total_attempts", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"duration_ms", duration.Milliseconds(),
			"last_error", lastErr,
		)
		return NewMaxRetriesExceededError(lastErr)
	}

	if r.metrics != nil {
		r.metrics.RecordOperation(r.name, "failure", attempt, duration.Seconds())
	}

	return err
}

// Name returns the name of this retrier.
func (r *retrier) Name() string {
	return r.name
}

// RetryableError is an interface for errors that indicate whether they are retryable.
type RetryableError interface {
	error
	Retryable() bool
}

// temporaryError is an interface for errors that indicate temporary failure.
type temporaryError interface {
	Temporary() bool
}

// DatabaseIsRetryable classifies a content-cache query error.
//
// Retried:
//   - pgconn.SafeToRetry failures (the statement never reached the server)
//   - Postgres connection-exception class errors (SQLSTATE 08xxx), which is
//     what a pool hitting a restarted database actually reports
//   - context.DeadlineExceeded (the statement timeout fired)
//   - net.Error timeouts and errors implementing Retryable/Temporary
//   - anything unclassified, on the grounds that a cache write losing a
//     race with a flaky network should err toward another attempt
//
// Not retried:
//   - context.Canceled — the caller has gone away
//   - SQLSTATE errors outside the connection class: a constraint or syntax
//     failure will fail identically on every attempt
func DatabaseIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is "Connection Exception"; everything else is a real
		// answer from the server.
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}

	var tempErr temporaryError
	if errors.As(err, &tempErr) {
		return tempErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return true
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultRetryMaxAttempts,
		InitialDelay: DefaultRetryInitialDelay,
		MaxDelay:     DefaultRetryMaxDelay,
		Multiplier:   DefaultRetryMultiplier,
	}
}

// DoWithResult executes a function that returns data with retry logic.
// This is a helper function for functions that return both a result and an error.
func DoWithResult[T any](r Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
