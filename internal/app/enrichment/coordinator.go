package enrichment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domain "github.com/p2repo/cdenrich/internal/domain/enrichment"
	"github.com/p2repo/cdenrich/internal/domain/ratelimit"
	"github.com/p2repo/cdenrich/internal/infra/resilience"
)

// CoordinatorConfig holds the loop's timing knobs.
type CoordinatorConfig struct {
	// PollInterval bounds each blocking poll of the queue.
	PollInterval time.Duration
	// BackoffCap bounds the sleep taken when a polled request cannot be
	// admitted because the window is exhausted.
	BackoffCap time.Duration
}

// DefaultCoordinatorConfig returns the standard loop timing.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		PollInterval: time.Second,
		BackoffCap:   5 * time.Second,
	}
}

// Coordinator is the single admission point between the queue and the
// worker pool. One goroutine runs the loop: it sleeps out exhausted
// rate-limit windows, polls the queue, re-checks capacity per request, and
// hands admissible requests to the pool. Workers never make admission
// decisions, so a window reopening cannot stampede the upstream.
type Coordinator struct {
	queue   *Queue
	tracker *ratelimit.Tracker
	pool    resilience.Bulkhead
	worker  *Worker
	logger  *slog.Logger
	metrics *Metrics
	cfg     CoordinatorConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewCoordinator constructs a Coordinator; Run must be called to start it.
func NewCoordinator(
	queue *Queue,
	tracker *ratelimit.Tracker,
	pool resilience.Bulkhead,
	worker *Worker,
	logger *slog.Logger,
	metrics *Metrics,
	cfg CoordinatorConfig,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		queue:   queue,
		tracker: tracker,
		pool:    pool,
		worker:  worker,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.sleep = c.interruptibleSleep
	return c
}

// Run starts the coordinator goroutine. It returns immediately and is a
// no-op on second call.
func (c *Coordinator) Run() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.loop()
}

func (c *Coordinator) loop() {
	defer close(c.done)

	for {
		if c.ctx.Err() != nil {
			return
		}

		remaining, resetAt := c.tracker.Query()
		c.metrics.SetRateLimitRemaining(remaining)

		if remaining == 0 && resetAt.After(c.now()) {
			wait := time.Until(resetAt)
			c.logger.Info("rate limit exhausted, pausing dispatch",
				slog.Duration("wait", wait),
				slog.Time("reset_at", resetAt))
			c.metrics.RecordRateLimitWait(wait.Seconds())
			if !c.sleep(c.ctx, wait) {
				return
			}
			// The window has rolled over; forget the stale zero so the
			// next response re-establishes ground truth.
			c.tracker.ResetRemainingUnknown()
		}

		req, ok := c.queue.Poll(c.cfg.PollInterval)
		c.metrics.SetQueueDepth(c.queue.Len())
		if !ok {
			continue
		}

		// Capacity may have drained between the window check and the
		// poll; re-check before handing the request to the pool.
		if c.tracker.Remaining() == 0 {
			c.queue.Offer(req)
			c.metrics.RecordRequeue("admission_denied")
			if !c.sleep(c.ctx, c.admissionBackoff()) {
				return
			}
			// A zero with no reset instant ahead of us can never clear
			// itself: no worker runs, so no response will overwrite it.
			// Forget it and let the next dispatch re-establish ground
			// truth.
			if resetAt := c.tracker.ResetAt(); resetAt.IsZero() || !resetAt.After(c.now()) {
				c.tracker.ResetRemainingUnknown()
			}
			continue
		}

		c.dispatch(req)
	}
}

// admissionBackoff is the sleep taken after a request is bounced back to
// the tail: up to the reset instant when one is known, capped, and a flat
// second otherwise.
func (c *Coordinator) admissionBackoff() time.Duration {
	resetAt := c.tracker.ResetAt()
	if !resetAt.IsZero() && resetAt.After(c.now()) {
		if until := time.Until(resetAt); until < c.cfg.BackoffCap {
			return until
		}
		return c.cfg.BackoffCap
	}
	return time.Second
}

func (c *Coordinator) dispatch(req *domain.Request) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		err := c.pool.Do(c.ctx, func(ctx context.Context) error {
			c.worker.Process(ctx, req)
			return nil
		})
		if err != nil {
			// Pool saturated or shutdown in flight; the request goes back
			// to the tail rather than being dropped.
			c.queue.Offer(req)
			c.metrics.RecordRequeue("pool_rejected")
		}
	}()
}

func (c *Coordinator) interruptibleSleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop cancels the loop and every blocked pool admission. It does not wait.
func (c *Coordinator) Stop() {
	c.cancel()

	// A coordinator stopped before Run still has to resolve Done.
	c.mu.Lock()
	if !c.started {
		c.started = true
		close(c.done)
	}
	c.mu.Unlock()
}

// Done is closed once the loop goroutine has exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// AwaitWorkers blocks until in-flight worker executions finish or the
// context expires.
func (c *Coordinator) AwaitWorkers(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
