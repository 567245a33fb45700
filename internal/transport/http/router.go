// Package http provides the admin HTTP surface: liveness/readiness
// probes, Prometheus scraping, and read-only introspection of the
// enrichment manager. It accepts no enrichment submissions outside the
// development-only /debug/submit-test endpoint; Submit is an in-process
// API.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p2repo/cdenrich/internal/shared/metrics"
	"github.com/p2repo/cdenrich/internal/transport/http/middleware"
)

// RouterConfig holds the admin router's knobs.
type RouterConfig struct {
	// Development enables the /debug/submit-test endpoint.
	Development bool
	// MaxRequestSize bounds request bodies on the debug endpoints.
	MaxRequestSize int64
	// RateLimitRPS bounds per-IP requests on the debug endpoints.
	RateLimitRPS int
	// TracingEnabled adds the tracing middleware.
	TracingEnabled bool
}

// NewHealthHandler builds the liveness/readiness handler: liveness is a
// goroutine-count ceiling, readiness additionally requires the content
// cache's database to answer a ping.
func NewHealthHandler(registry *prometheus.Registry, dbCheck healthcheck.Check) healthcheck.Handler {
	h := healthcheck.NewMetricsHandler(registry, "cdenrich")

	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	if dbCheck != nil {
		h.AddReadinessCheck("content-cache-db", dbCheck)
	}
	return h
}

// NewRouter assembles the admin router.
func NewRouter(
	cfg RouterConfig,
	logger *slog.Logger,
	registry *prometheus.Registry,
	httpMetrics metrics.HTTPMetrics,
	health healthcheck.Handler,
	status *StatusHandler,
	submit *SubmitTestHandler,
	shutdownCoord middleware.ShutdownCoordinator,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger))
	if cfg.TracingEnabled {
		r.Use(middleware.Tracing)
	}
	r.Use(middleware.Metrics(httpMetrics))
	r.Use(middleware.SecureHeaders)
	if shutdownCoord != nil {
		r.Use(middleware.Shutdown(shutdownCoord))
	}

	r.Get("/healthz", health.LiveEndpoint)
	r.Get("/readyz", health.ReadyEndpoint)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/debug", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
			}))
		}
		if cfg.MaxRequestSize > 0 {
			r.Use(middleware.BodyLimiter(cfg.MaxRequestSize))
		}

		r.Get("/status", status.ServeHTTP)

		if cfg.Development && submit != nil {
			r.Post("/submit-test", submit.ServeHTTP)
		}
	})

	return r
}

// NewServer wraps the router in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout, idleTimeout, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
