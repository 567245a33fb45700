package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/p2repo/cdenrich/internal/domain/enrichment"
	"github.com/p2repo/cdenrich/internal/infra/cache"
	"github.com/p2repo/cdenrich/internal/infra/clearlydefined"
)

// fakeComponent collects properties added by the manager.
type fakeComponent struct {
	mu    sync.Mutex
	props map[string]string
}

func (c *fakeComponent) AddProperty(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.props == nil {
		c.props = make(map[string]string)
	}
	c.props[name] = value
}

func (c *fakeComponent) property(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.props[name]
	return v, ok
}

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, uri string) (clearlydefined.Result, error)

func (f fetcherFunc) Fetch(ctx context.Context, uri string) (clearlydefined.Result, error) {
	return f(ctx, uri)
}

func staticResult(r clearlydefined.Result) fetcherFunc {
	return func(context.Context, string) (clearlydefined.Result, error) { return r, nil }
}

func TestWorker_Process(t *testing.T) {
	ctx := context.Background()
	const uri = "https://api.example/pkg"

	t.Run("200 caches, annotates, completes", func(t *testing.T) {
		store := cache.NewMemory()
		q := NewQueue()
		w := NewWorker(staticResult(clearlydefined.Result{
			Outcome:    clearlydefined.OutcomeOK,
			StatusCode: 200,
			Body:       []byte(`{"licensed":{"declared":"MIT"}}`),
		}), store, q, nil, nil, 0)
		component := &fakeComponent{}
		req := domain.NewRequest(component, uri)

		w.Process(ctx, req)

		require.True(t, req.Future.IsDone())
		require.NoError(t, req.Future.Wait())

		license, ok := component.property(domain.DeclaredLicenseProperty)
		require.True(t, ok)
		assert.Equal(t, "MIT", license)

		payload, err := store.GetContent(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, `{"licensed":{"declared":"MIT"}}`, payload)
		assert.True(t, q.IsEmpty())
	})

	t.Run("200 with non-string license still succeeds unannotated", func(t *testing.T) {
		store := cache.NewMemory()
		q := NewQueue()
		w := NewWorker(staticResult(clearlydefined.Result{
			Outcome:    clearlydefined.OutcomeOK,
			StatusCode: 200,
			Body:       []byte(`{"licensed":{"declared":42}}`),
		}), store, q, nil, nil, 0)
		component := &fakeComponent{}
		req := domain.NewRequest(component, uri)

		w.Process(ctx, req)

		require.NoError(t, req.Future.Wait())
		_, ok := component.property(domain.DeclaredLicenseProperty)
		assert.False(t, ok)

		// The body is cached regardless.
		payload, err := store.GetContent(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, `{"licensed":{"declared":42}}`, payload)
	})

	t.Run("200 with unparseable body still succeeds and caches", func(t *testing.T) {
		store := cache.NewMemory()
		q := NewQueue()
		w := NewWorker(staticResult(clearlydefined.Result{
			Outcome:    clearlydefined.OutcomeOK,
			StatusCode: 200,
			Body:       []byte(`not json`),
		}), store, q, nil, nil, 0)
		component := &fakeComponent{}
		req := domain.NewRequest(component, uri)

		w.Process(ctx, req)

		require.NoError(t, req.Future.Wait())
		_, ok := component.property(domain.DeclaredLicenseProperty)
		assert.False(t, ok)

		payload, err := store.GetContent(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, "not json", payload)
	})

	t.Run("404 writes negative marker and completes unannotated", func(t *testing.T) {
		store := cache.NewMemory()
		q := NewQueue()
		w := NewWorker(staticResult(clearlydefined.Result{
			Outcome:    clearlydefined.OutcomeAbsent,
			StatusCode: 404,
		}), store, q, nil, nil, 0)
		component := &fakeComponent{}
		req := domain.NewRequest(component, uri)

		w.Process(ctx, req)

		require.NoError(t, req.Future.Wait())
		_, ok := component.property(domain.DeclaredLicenseProperty)
		assert.False(t, ok)

		_, err := store.GetContent(ctx, uri)
		assert.ErrorIs(t, err, cache.ErrAbsent)
		assert.True(t, q.IsEmpty())
	})

	t.Run("429 requeues without completing", func(t *testing.T) {
		store := cache.NewMemory()
		q := NewQueue()
		w := NewWorker(staticResult(clearlydefined.Result{
			Outcome:    clearlydefined.OutcomeRateLimited,
			StatusCode: 429,
		}), store, q, nil, nil, 0)
		req := domain.NewRequest(&fakeComponent{}, uri)

		w.Process(ctx, req)

		assert.False(t, req.Future.IsDone())
		got, ok := q.Poll(time.Second)
		require.True(t, ok)
		assert.Same(t, req, got)
	})

	t.Run("5xx requeues without completing", func(t *testing.T) {
		store := cache.NewMemory()
		q := NewQueue()
		w := NewWorker(staticResult(clearlydefined.Result{
			Outcome:    clearlydefined.OutcomeRetry,
			StatusCode: 503,
		}), store, q, nil, nil, 0)
		req := domain.NewRequest(&fakeComponent{}, uri)

		w.Process(ctx, req)

		assert.False(t, req.Future.IsDone())
		assert.Equal(t, 1, q.Len())
	})

	t.Run("transport error requeues without completing", func(t *testing.T) {
		store := cache.NewMemory()
		q := NewQueue()
		w := NewWorker(fetcherFunc(func(context.Context, string) (clearlydefined.Result, error) {
			return clearlydefined.Result{}, errors.New("connection refused")
		}), store, q, nil, nil, 0)
		req := domain.NewRequest(&fakeComponent{}, uri)

		w.Process(ctx, req)

		assert.False(t, req.Future.IsDone())
		assert.Equal(t, 1, q.Len())
	})
}

func TestWorker_MaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	q := NewQueue()
	w := NewWorker(fetcherFunc(func(context.Context, string) (clearlydefined.Result, error) {
		return clearlydefined.Result{}, errors.New("down")
	}), store, q, nil, nil, 3)
	req := domain.NewRequest(&fakeComponent{}, "https://api.example/flaky")

	// First two attempts requeue.
	for i := 0; i < 2; i++ {
		w.Process(ctx, req)
		require.False(t, req.Future.IsDone())
		got, ok := q.Poll(time.Second)
		require.True(t, ok)
		require.Same(t, req, got)
	}

	// Third attempt hits the cutoff and fails terminally.
	w.Process(ctx, req)

	require.True(t, req.Future.IsDone())
	err := req.Future.Wait()
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindMaxAttemptsExceeded, kind)
	assert.True(t, q.IsEmpty())
}

func TestWorker_UnboundedByDefault(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	w := NewWorker(fetcherFunc(func(context.Context, string) (clearlydefined.Result, error) {
		return clearlydefined.Result{}, errors.New("down")
	}), cache.NewMemory(), q, nil, nil, 0)
	req := domain.NewRequest(&fakeComponent{}, "https://api.example/flaky")

	for i := 0; i < 10; i++ {
		w.Process(ctx, req)
		require.False(t, req.Future.IsDone())
		got, ok := q.Poll(time.Second)
		require.True(t, ok)
		require.Same(t, req, got)
	}
}
