package enrichment

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	domain "github.com/p2repo/cdenrich/internal/domain/enrichment"
	"github.com/p2repo/cdenrich/internal/infra/cache"
	"github.com/p2repo/cdenrich/internal/infra/clearlydefined"
)

// Fetcher is the single-round-trip contract the worker needs from the
// ClearlyDefined client.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (clearlydefined.Result, error)
}

// Worker executes one request synchronously: the HTTP round trip, outcome
// classification, cache and component side effects, and the complete-or-
// requeue decision. Admission is never the worker's call — it only reports
// rate-limit state back through the shared tracker (inside the Fetcher);
// the coordinator alone decides what gets dispatched.
type Worker struct {
	fetcher Fetcher
	cache   cache.ContentHandler
	queue   *Queue
	logger  *slog.Logger
	metrics *Metrics

	// maxAttempts is the opt-in retry cutoff; zero keeps retries unbounded.
	maxAttempts int64
}

// NewWorker constructs a Worker.
func NewWorker(fetcher Fetcher, handler cache.ContentHandler, queue *Queue, logger *slog.Logger, metrics *Metrics, maxAttempts int) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		fetcher:     fetcher,
		cache:       handler,
		queue:       queue,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: int64(maxAttempts),
	}
}

// Process runs one attempt of req. The request's future is completed on a
// terminal outcome (200, 404, or the opt-in attempt cutoff); every other
// outcome re-appends the request at the queue tail with the future left
// pending.
func (w *Worker) Process(ctx context.Context, req *domain.Request) {
	attempt := req.RecordAttempt()

	start := time.Now()
	result, err := w.fetcher.Fetch(ctx, req.URI)
	w.metrics.RecordFetchDuration(time.Since(start).Seconds())

	if err != nil {
		w.logger.Warn("enrichment fetch failed",
			slog.String("uri", req.URI),
			slog.Int64("attempt", attempt),
			slog.String("error", err.Error()))
		w.requeue(req, attempt, domain.KindTransientTransport)
		return
	}

	switch result.Outcome {
	case clearlydefined.OutcomeOK:
		w.completeOK(ctx, req, result.Body)

	case clearlydefined.OutcomeAbsent:
		if err := w.cache.SaveAbsent(ctx, req.URI); err != nil {
			w.logger.Error("saving negative cache entry failed",
				slog.String("uri", req.URI),
				slog.String("error", err.Error()))
		}
		req.Future.Complete(nil)
		w.metrics.RecordCompleted(string(domain.KindResourceAbsent))

	case clearlydefined.OutcomeRateLimited:
		w.requeue(req, attempt, domain.KindTransientRateLimited)

	default:
		w.logger.Warn("enrichment fetch returned retryable status",
			slog.String("uri", req.URI),
			slog.Int("status", result.StatusCode),
			slog.Int64("attempt", attempt))
		w.requeue(req, attempt, domain.KindTransientTransport)
	}
}

// completeOK caches the payload, annotates the component, and resolves the
// future — in that order: the annotation must be observable before the
// future is.
func (w *Worker) completeOK(ctx context.Context, req *domain.Request, body []byte) {
	if err := w.cache.SaveContent(ctx, req.URI, string(body)); err != nil {
		w.logger.Error("saving cache entry failed",
			slog.String("uri", req.URI),
			slog.String("error", err.Error()))
	}

	if _, err := domain.Annotate(req.Component, body); err != nil {
		w.logger.Error("discarding unparseable payload annotation",
			slog.String("uri", req.URI),
			slog.String("kind", string(domain.KindBadPayload)),
			slog.String("error", err.Error()))
	}

	req.Future.Complete(nil)
	w.metrics.RecordCompleted("ok")
}

func (w *Worker) requeue(req *domain.Request, attempt int64, kind domain.Kind) {
	if w.maxAttempts > 0 && attempt >= w.maxAttempts {
		err := domain.NewError(domain.KindMaxAttemptsExceeded,
			"enrichment abandoned after "+strconv.FormatInt(attempt, 10)+" attempts: "+req.URI)
		req.Future.Complete(err)
		w.metrics.RecordCompleted(string(domain.KindMaxAttemptsExceeded))
		w.logger.Error("enrichment abandoned",
			slog.String("uri", req.URI),
			slog.Int64("attempts", attempt),
			slog.String("kind", string(kind)))
		return
	}

	w.queue.Offer(req)
	w.metrics.RecordRequeue(string(kind))
}
