// Package clearlydefined performs the HTTP round trip against the
// ClearlyDefined definitions API and classifies each response into one of
// the outcomes the enrichment worker acts on. Rate-limit headers are fed
// into the shared tracker here, on every response, regardless of status.
package clearlydefined

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/p2repo/cdenrich/internal/domain/ratelimit"
	"github.com/p2repo/cdenrich/internal/infra/resilience"
)

// Outcome classifies a completed HTTP round trip.
type Outcome int

const (
	// OutcomeOK is a 200: the body is the definition payload.
	OutcomeOK Outcome = iota
	// OutcomeAbsent is a 404: the resource is confirmed not to exist.
	OutcomeAbsent
	// OutcomeRateLimited is a 429: the caller's quota is exhausted.
	OutcomeRateLimited
	// OutcomeRetry is any other status; the request should be retried.
	OutcomeRetry
)

// String returns the outcome's log label.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAbsent:
		return "absent"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "retry"
	}
}

// Result is the classified outcome of one Fetch.
type Result struct {
	Outcome    Outcome
	StatusCode int
	// Body is the response body; populated only for OutcomeOK.
	Body []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCircuitBreaker guards every round trip with cb; when the circuit is
// open, Fetch fails fast without touching the network. Construct cb with
// BreakerFailure as its failure classifier so caller cancellations do not
// count against the upstream.
func WithCircuitBreaker(cb resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// BreakerFailure classifies a Fetch error for the circuit breaker. Only
// errors that say something about ClearlyDefined's health count: transport
// failures do, a caller-cancelled context does not. A classified response —
// any status, 429 and 5xx included — is not a breaker failure either; those
// are the rate-limit coordinator's business, and tripping the breaker on
// them would fight its pause-and-resume schedule.
func BreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// WithLogger sets the logger for malformed-header and trace diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracerProvider enables spans around each round trip.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer("clearlydefined") }
}

// Client fetches definition payloads. It follows redirects (the default
// http.Client behavior) and sends no request headers; the URI it is handed
// is already the canonical absolute resource key.
type Client struct {
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	breaker    resilience.CircuitBreaker
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewClient returns a Client that records rate-limit state into tracker.
func NewClient(timeout time.Duration, tracker *ratelimit.Tracker, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		tracker:    tracker,
		logger:     slog.Default(),
		tracer:     noop.NewTracerProvider().Tracer("clearlydefined"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one GET of uri, updates the rate-limit tracker from the
// response headers, and classifies the result. A non-nil error means no
// classifiable response was obtained (transport failure, cancellation, or
// an open circuit) and the request should be retried.
func (c *Client) Fetch(ctx context.Context, uri string) (Result, error) {
	const op = "clearlydefined.Client.Fetch"

	ctx, span := c.tracer.Start(ctx, "clearlydefined.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", uri)))
	defer span.End()

	do := func() (Result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return Result{}, fmt.Errorf("%s: build request: %w", op, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
		defer resp.Body.Close()

		return c.classify(resp)
	}

	var result Result
	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, func(context.Context) error {
			var fetchErr error
			result, fetchErr = do()
			return fetchErr
		})
	} else {
		result, err = do()
	}

	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", result.StatusCode),
		attribute.String("outcome", result.Outcome.String()))
	return result, nil
}

func (c *Client) classify(resp *http.Response) (Result, error) {
	const op = "clearlydefined.Client.classify"

	c.tracker.UpdateFromHeaders(resp.Header, c.logBadHeader)

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("%s: read body: %w", op, err)
		}
		return Result{Outcome: OutcomeOK, StatusCode: resp.StatusCode, Body: body}, nil

	case http.StatusNotFound:
		return Result{Outcome: OutcomeAbsent, StatusCode: resp.StatusCode}, nil

	case http.StatusTooManyRequests:
		c.tracker.ForceExhausted()
		if v := resp.Header.Get("Retry-After"); v != "" {
			if d, ok := ratelimit.ParseRetryAfterSeconds(v); ok {
				c.tracker.SetResetAt(c.now().Add(d))
			} else {
				c.logBadHeader("Retry-After", v)
			}
		}
		return Result{Outcome: OutcomeRateLimited, StatusCode: resp.StatusCode}, nil

	default:
		return Result{Outcome: OutcomeRetry, StatusCode: resp.StatusCode}, nil
	}
}

func (c *Client) logBadHeader(name, value string) {
	c.logger.Error("discarding malformed rate-limit header",
		slog.String("header", name),
		slog.String("value", value))
}
