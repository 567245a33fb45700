package enrichment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/p2repo/cdenrich/internal/domain/enrichment"
	"github.com/p2repo/cdenrich/internal/domain/ratelimit"
	"github.com/p2repo/cdenrich/internal/infra/cache"
	"github.com/p2repo/cdenrich/internal/infra/clearlydefined"
	"github.com/p2repo/cdenrich/internal/infra/resilience"
)

// recordingFetcher records the instant of each fetch.
type recordingFetcher struct {
	mu     sync.Mutex
	times  []time.Time
	result clearlydefined.Result
}

func (f *recordingFetcher) Fetch(_ context.Context, _ string) (clearlydefined.Result, error) {
	f.mu.Lock()
	f.times = append(f.times, time.Now())
	f.mu.Unlock()
	return f.result, nil
}

func (f *recordingFetcher) fetchTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.times...)
}

func testPool(t *testing.T) resilience.Bulkhead {
	t.Helper()
	return resilience.NewBulkhead("workers", resilience.BulkheadConfig{
		MaxConcurrent: 8,
		MaxWaiting:    64,
	})
}

func startCoordinator(t *testing.T, fetcher Fetcher, tracker *ratelimit.Tracker, cfg CoordinatorConfig) (*Coordinator, *Queue) {
	t.Helper()
	q := NewQueue()
	w := NewWorker(fetcher, cache.NewMemory(), q, nil, nil, 0)
	c := NewCoordinator(q, tracker, testPool(t), w, nil, nil, cfg)
	c.Run()
	t.Cleanup(func() {
		c.Stop()
		<-c.Done()
	})
	return c, q
}

func TestCoordinator_AdmitsWhenRemainingUnknown(t *testing.T) {
	fetcher := &recordingFetcher{result: clearlydefined.Result{Outcome: clearlydefined.OutcomeOK, StatusCode: 200, Body: []byte(`{}`)}}
	tracker := ratelimit.NewTracker()
	_, q := startCoordinator(t, fetcher, tracker, CoordinatorConfig{PollInterval: 20 * time.Millisecond, BackoffCap: 5 * time.Second})

	req := newTestRequest("https://api.example/a")
	q.Offer(req)

	require.NoError(t, waitDone(t, req.Future, time.Second))
	assert.Len(t, fetcher.fetchTimes(), 1)
}

func TestCoordinator_AdmitsWhenRemainingPositive(t *testing.T) {
	fetcher := &recordingFetcher{result: clearlydefined.Result{Outcome: clearlydefined.OutcomeOK, StatusCode: 200, Body: []byte(`{}`)}}
	tracker := ratelimit.NewTracker()
	tracker.UpdateFromHeaders(headerMap{"x-ratelimit-limit": "100", "x-ratelimit-remaining": "42"}, nil)
	_, q := startCoordinator(t, fetcher, tracker, CoordinatorConfig{PollInterval: 20 * time.Millisecond, BackoffCap: 5 * time.Second})

	req := newTestRequest("https://api.example/a")
	q.Offer(req)

	require.NoError(t, waitDone(t, req.Future, time.Second))
}

func TestCoordinator_HoldsDispatchUntilReset(t *testing.T) {
	fetcher := &recordingFetcher{result: clearlydefined.Result{Outcome: clearlydefined.OutcomeOK, StatusCode: 200, Body: []byte(`{}`)}}
	tracker := ratelimit.NewTracker()
	tracker.ForceExhausted()
	resetAt := time.Now().Add(300 * time.Millisecond)
	tracker.SetResetAt(resetAt)
	_, q := startCoordinator(t, fetcher, tracker, CoordinatorConfig{PollInterval: 20 * time.Millisecond, BackoffCap: 5 * time.Second})

	req := newTestRequest("https://api.example/held")
	q.Offer(req)

	require.NoError(t, waitDone(t, req.Future, 3*time.Second))

	times := fetcher.fetchTimes()
	require.Len(t, times, 1)
	assert.False(t, times[0].Before(resetAt), "dispatched %v before reset %v", times[0], resetAt)
}

func TestCoordinator_MarksRemainingUnknownAfterWait(t *testing.T) {
	fetcher := &recordingFetcher{result: clearlydefined.Result{Outcome: clearlydefined.OutcomeOK, StatusCode: 200, Body: []byte(`{}`)}}
	tracker := ratelimit.NewTracker()
	tracker.ForceExhausted()
	tracker.SetResetAt(time.Now().Add(100 * time.Millisecond))
	startCoordinator(t, fetcher, tracker, CoordinatorConfig{PollInterval: 20 * time.Millisecond, BackoffCap: 5 * time.Second})

	require.Eventually(t, func() bool {
		return tracker.Remaining() == ratelimit.Unknown
	}, time.Second, 10*time.Millisecond)
}

func TestCoordinator_RequeuesWhenExhaustedWithoutReset(t *testing.T) {
	// remaining == 0 with no reset instant: the polled request bounces to
	// the tail and dispatch pauses for the flat one-second backoff. After
	// the backoff the stale zero is discarded and the request probes the
	// upstream, which re-establishes the real window.
	fetcher := &recordingFetcher{result: clearlydefined.Result{Outcome: clearlydefined.OutcomeOK, StatusCode: 200, Body: []byte(`{}`)}}
	tracker := ratelimit.NewTracker()
	tracker.ForceExhausted()
	_, q := startCoordinator(t, fetcher, tracker, CoordinatorConfig{PollInterval: 20 * time.Millisecond, BackoffCap: 5 * time.Second})

	req := newTestRequest("https://api.example/blocked")
	q.Offer(req)

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, fetcher.fetchTimes())
	assert.False(t, req.Future.IsDone())

	require.NoError(t, waitDone(t, req.Future, 5*time.Second))
}

func TestCoordinator_StopExitsLoop(t *testing.T) {
	fetcher := &recordingFetcher{result: clearlydefined.Result{Outcome: clearlydefined.OutcomeOK, StatusCode: 200, Body: []byte(`{}`)}}
	tracker := ratelimit.NewTracker()
	c, _ := startCoordinator(t, fetcher, tracker, CoordinatorConfig{PollInterval: 20 * time.Millisecond, BackoffCap: 5 * time.Second})

	c.Stop()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("coordinator did not exit after Stop")
	}
}

func TestCoordinator_StopInterruptsRateLimitWait(t *testing.T) {
	fetcher := &recordingFetcher{result: clearlydefined.Result{Outcome: clearlydefined.OutcomeOK, StatusCode: 200, Body: []byte(`{}`)}}
	tracker := ratelimit.NewTracker()
	tracker.ForceExhausted()
	tracker.SetResetAt(time.Now().Add(time.Hour))
	c, _ := startCoordinator(t, fetcher, tracker, CoordinatorConfig{PollInterval: 20 * time.Millisecond, BackoffCap: 5 * time.Second})

	time.Sleep(50 * time.Millisecond)
	c.Stop()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("coordinator did not exit from a rate-limit sleep")
	}
}

// headerMap satisfies ratelimit.Header for tests.
type headerMap map[string]string

func (h headerMap) Get(name string) string { return h[name] }

func waitDone(t *testing.T, f *domain.Future, timeout time.Duration) error {
	t.Helper()
	select {
	case <-f.Done():
		return f.Wait()
	case <-time.After(timeout):
		t.Fatalf("future not resolved within %v", timeout)
		return nil
	}
}
