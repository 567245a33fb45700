// Package enrichment implements the rate-limit-aware asynchronous request
// manager: a bounded worker pool fed by a single coordinator goroutine,
// with header-driven rate-limit tracking and a two-tier content cache that
// suppresses round trips for anything already observed — confirmed-absent
// resources included.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domain "github.com/p2repo/cdenrich/internal/domain/enrichment"
	"github.com/p2repo/cdenrich/internal/domain/ratelimit"
	"github.com/p2repo/cdenrich/internal/infra/cache"
	"github.com/p2repo/cdenrich/internal/infra/resilience"
	"github.com/p2repo/cdenrich/internal/runtimeutil"
)

// ErrEmptyURI is the only synchronous failure Submit can produce.
var ErrEmptyURI = errors.New("enrichment: empty uri")

// ManagerConfig holds the facade's knobs.
type ManagerConfig struct {
	Coordinator CoordinatorConfig
	// MaxAttempts caps worker attempts per request; zero means unbounded.
	MaxAttempts int
	// DrainTimeout bounds how long Shutdown waits for in-flight workers.
	DrainTimeout time.Duration
	// ThrottleKey is the ingress-throttle bucket key; all submissions
	// share one bucket.
	ThrottleKey string
}

// DefaultManagerConfig returns the standard configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Coordinator:  DefaultCoordinatorConfig(),
		DrainTimeout: 30 * time.Second,
		ThrottleKey:  "enrichment-submit",
	}
}

// Manager is the public facade over the queue, tracker, worker pool, and
// coordinator. Submit may be called concurrently from many goroutines.
type Manager struct {
	queue       *Queue
	tracker     *ratelimit.Tracker
	active      *ActiveSet
	coordinator *Coordinator
	cache       cache.ContentHandler
	throttle    runtimeutil.RateLimiter
	logger      *slog.Logger
	metrics     *Metrics
	cfg         ManagerConfig

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewManager wires the facade. The bulkhead is the worker pool's admission
// gate; its capacity is the pool size.
func NewManager(
	fetcher Fetcher,
	handler cache.ContentHandler,
	tracker *ratelimit.Tracker,
	pool resilience.Bulkhead,
	throttle runtimeutil.RateLimiter,
	logger *slog.Logger,
	metrics *Metrics,
	cfg ManagerConfig,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if throttle == nil {
		throttle = runtimeutil.NewNopRateLimiter()
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.ThrottleKey == "" {
		cfg.ThrottleKey = "enrichment-submit"
	}

	queue := NewQueue()
	worker := NewWorker(fetcher, handler, queue, logger, metrics, cfg.MaxAttempts)
	coordinator := NewCoordinator(queue, tracker, pool, worker, logger, metrics, cfg.Coordinator)

	return &Manager{
		queue:       queue,
		tracker:     tracker,
		active:      NewActiveSet(),
		coordinator: coordinator,
		cache:       handler,
		throttle:    throttle,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// Start launches the coordinator goroutine.
func (m *Manager) Start() {
	m.coordinator.Run()
}

// Submit enriches component from uri. On a cache hit the component is
// annotated synchronously and the returned future is already resolved; on
// a confirmed-absent entry the future is resolved with no annotation and
// nothing is enqueued. Otherwise the request is queued and its pending
// future returned — every later failure is reported through it, never
// synchronously.
func (m *Manager) Submit(ctx context.Context, component domain.Component, uri string) (*domain.Future, error) {
	if uri == "" {
		return nil, ErrEmptyURI
	}

	payload, err := m.cache.GetContent(ctx, uri)
	switch {
	case err == nil:
		m.metrics.RecordCacheLookup("hit")
		if _, annotateErr := domain.Annotate(component, []byte(payload)); annotateErr != nil {
			m.logger.Error("discarding unparseable cached payload",
				slog.String("uri", uri),
				slog.String("kind", string(domain.KindBadPayload)),
				slog.String("error", annotateErr.Error()))
		}
		return completedFuture(), nil

	case errors.Is(err, cache.ErrAbsent):
		m.metrics.RecordCacheLookup("absent")
		return completedFuture(), nil

	default:
		if !errors.Is(err, cache.ErrNotCached) {
			m.logger.Error("content cache read failed, falling through to fetch",
				slog.String("uri", uri),
				slog.String("error", err.Error()))
		}
		m.metrics.RecordCacheLookup("miss")
	}

	m.throttleSubmit(ctx)

	req := domain.NewRequest(component, uri)
	m.active.Add(req.Future)
	m.metrics.SetActiveFutures(m.active.Len())
	req.Future.OnComplete(func() {
		m.active.Remove(req.Future)
		m.metrics.SetActiveFutures(m.active.Len())
	})

	m.queue.Offer(req)
	m.metrics.SetQueueDepth(m.queue.Len())
	return req.Future, nil
}

// throttleSubmit holds the caller until the ingress throttle admits the
// submission. Throttle failures are logged and treated as admission so a
// broken Redis never turns Submit into a synchronous failure.
func (m *Manager) throttleSubmit(ctx context.Context) {
	for {
		allowed, err := m.throttle.Allow(ctx, m.cfg.ThrottleKey)
		if err != nil {
			m.logger.Warn("ingress throttle check failed, admitting",
				slog.String("error", err.Error()))
			return
		}
		if allowed {
			return
		}
		timer := time.NewTimer(50 * time.Millisecond)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func completedFuture() *domain.Future {
	f := domain.NewFuture()
	f.Complete(nil)
	return f
}

// WaitForCompletion blocks until the queue and the active set are both
// empty, re-checking after every future settles. It returns promptly when
// the system is already idle and does not tear anything down.
func (m *Manager) WaitForCompletion(ctx context.Context) error {
	for {
		changed := m.active.Changed()
		if m.active.IsEmpty() && m.queue.IsEmpty() {
			return nil
		}
		select {
		case <-changed:
		case <-time.After(100 * time.Millisecond):
			// Re-check on a short tick as well; queue transitions do not
			// signal the active set's channel.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown stops the coordinator, waits out in-flight workers up to the
// drain timeout, and resolves every still-pending future with an
// interruption error. Safe to call multiple times.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.coordinator.Stop()

		drainCtx, cancel := context.WithTimeout(ctx, m.cfg.DrainTimeout)
		defer cancel()

		select {
		case <-m.coordinator.Done():
		case <-drainCtx.Done():
			m.shutdownErr = drainCtx.Err()
		}

		if err := m.coordinator.AwaitWorkers(drainCtx); err != nil {
			m.logger.Warn("shutdown drain timed out with workers in flight",
				slog.String("error", err.Error()))
			m.shutdownErr = err
		}

		interrupted := domain.NewError(domain.KindInterrupted, "enrichment manager shut down")
		for _, req := range m.queue.Drain() {
			req.Future.Complete(interrupted)
		}
		for _, f := range m.active.Snapshot() {
			f.Complete(interrupted)
		}
		m.metrics.SetQueueDepth(0)
		m.metrics.SetActiveFutures(0)

		m.logger.Info("enrichment manager stopped")
	})
	return m.shutdownErr
}

// Status is a read-only snapshot for the admin surface.
type Status struct {
	QueueDepth         int       `json:"queue_depth"`
	ActiveFutures      int       `json:"active_futures"`
	RateLimitLimit     int64     `json:"rate_limit_limit"`
	RateLimitRemaining int64     `json:"rate_limit_remaining"`
	RateLimitResetAt   time.Time `json:"rate_limit_reset_at"`
}

// Status reports current queue, active-set, and tracker state.
func (m *Manager) Status() Status {
	return Status{
		QueueDepth:         m.queue.Len(),
		ActiveFutures:      m.active.Len(),
		RateLimitLimit:     m.tracker.Limit(),
		RateLimitRemaining: m.tracker.Remaining(),
		RateLimitResetAt:   m.tracker.ResetAt(),
	}
}
