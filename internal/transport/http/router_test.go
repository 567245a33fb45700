package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enrichapp "github.com/p2repo/cdenrich/internal/app/enrichment"
	"github.com/p2repo/cdenrich/internal/domain/ratelimit"
	"github.com/p2repo/cdenrich/internal/infra/cache"
	"github.com/p2repo/cdenrich/internal/infra/clearlydefined"
	"github.com/p2repo/cdenrich/internal/infra/observability"
	"github.com/p2repo/cdenrich/internal/infra/resilience"
)

func newTestManager(t *testing.T, store cache.ContentHandler) *enrichapp.Manager {
	t.Helper()
	tracker := ratelimit.NewTracker()
	client := clearlydefined.NewClient(time.Second, tracker)
	pool := resilience.NewBulkhead("workers", resilience.BulkheadConfig{MaxConcurrent: 2, MaxWaiting: 8})

	m := enrichapp.NewManager(client, store, tracker, pool, nil, nil, nil, enrichapp.DefaultManagerConfig())
	m.Start()
	t.Cleanup(func() {
		require.NoError(t, m.Shutdown(context.Background()))
	})
	return m
}

func newTestRouter(t *testing.T, cfg RouterConfig, store cache.ContentHandler) http.Handler {
	t.Helper()
	registry, httpMetrics := observability.NewMetricsRegistry()
	manager := newTestManager(t, store)
	health := NewHealthHandler(registry, nil)
	logger := slog.Default()

	return NewRouter(cfg, logger, registry, httpMetrics, health,
		NewStatusHandler(manager), NewSubmitTestHandler(manager, logger), nil)
}

func TestRouter_Probes(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, cache.NewMemory())

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, cache.NewMemory())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_DebugStatus(t *testing.T) {
	router := newTestRouter(t, RouterConfig{}, cache.NewMemory())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			QueueDepth         int   `json:"queue_depth"`
			ActiveFutures      int   `json:"active_futures"`
			RateLimitRemaining int64 `json:"rate_limit_remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Data.QueueDepth)
	assert.Equal(t, ratelimit.Unknown, body.Data.RateLimitRemaining)
}

func TestRouter_SubmitTest(t *testing.T) {
	t.Run("hidden outside development", func(t *testing.T) {
		router := newTestRouter(t, RouterConfig{}, cache.NewMemory())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/submit-test",
			strings.NewReader(`{"uri":"https://api.example/x"}`)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cache hit resolves synchronously", func(t *testing.T) {
		store := cache.NewMemory()
		require.NoError(t, store.SaveContent(context.Background(),
			"https://api.example/pkg", `{"licensed":{"declared":"MIT"}}`))
		router := newTestRouter(t, RouterConfig{Development: true}, store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/submit-test",
			strings.NewReader(`{"uri":"https://api.example/pkg"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data struct {
				Resolved   bool              `json:"resolved"`
				Properties map[string]string `json:"properties"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Data.Resolved)
		assert.Equal(t, "MIT", body.Data.Properties["clearly-defined"])
	})

	t.Run("invalid JSON yields a problem response", func(t *testing.T) {
		router := newTestRouter(t, RouterConfig{Development: true}, cache.NewMemory())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/submit-test",
			strings.NewReader(`{not json`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("missing uri fails validation", func(t *testing.T) {
		router := newTestRouter(t, RouterConfig{Development: true}, cache.NewMemory())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/submit-test",
			strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_ShutdownCoordinatorRejects(t *testing.T) {
	registry, httpMetrics := observability.NewMetricsRegistry()
	manager := newTestManager(t, cache.NewMemory())
	coord := resilience.NewShutdownCoordinator(resilience.ShutdownConfig{
		DrainPeriod: time.Second,
		GracePeriod: time.Second,
	})
	logger := slog.Default()
	router := NewRouter(RouterConfig{}, logger, registry, httpMetrics,
		NewHealthHandler(registry, nil), NewStatusHandler(manager), nil, coord)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	coord.InitiateShutdown()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
