// Package fxmodule provides Uber Fx dependency injection modules for the
// enrichment service.
//
// Usage in main.go:
//
//	app := fx.New(
//	    fxmodule.Module,
//	    fx.Invoke(run),
//	)
//	app.Run()
package fxmodule

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/go-chi/chi/v5"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	enrichapp "github.com/p2repo/cdenrich/internal/app/enrichment"
	"github.com/p2repo/cdenrich/internal/domain/ratelimit"
	"github.com/p2repo/cdenrich/internal/infra/cache"
	"github.com/p2repo/cdenrich/internal/infra/clearlydefined"
	"github.com/p2repo/cdenrich/internal/infra/config"
	"github.com/p2repo/cdenrich/internal/infra/observability"
	"github.com/p2repo/cdenrich/internal/infra/postgres"
	redisinfra "github.com/p2repo/cdenrich/internal/infra/redis"
	"github.com/p2repo/cdenrich/internal/infra/resilience"
	"github.com/p2repo/cdenrich/internal/runtimeutil"
	"github.com/p2repo/cdenrich/internal/shared/metrics"
	httpTransport "github.com/p2repo/cdenrich/internal/transport/http"
	"github.com/p2repo/cdenrich/internal/transport/http/contract"
	"github.com/p2repo/cdenrich/internal/transport/http/middleware"
)

// Module provides all application dependencies via Uber Fx.
var Module = fx.Options(
	ConfigModule,
	ObservabilityModule,
	ResilienceModule,
	PostgresModule,
	CacheModule,
	EnrichmentModule,
	TransportModule,
)

// ConfigModule provides configuration dependencies.
var ConfigModule = fx.Options(
	fx.Provide(config.Load),
	fx.Invoke(func(cfg *config.Config) error {
		return contract.SetProblemBaseURL(cfg.ProblemBaseURL)
	}),
)

// ObservabilityModule provides logging, metrics, and tracing dependencies.
var ObservabilityModule = fx.Options(
	fx.Provide(observability.NewLogger),
	fx.Invoke(func(logger *slog.Logger) {
		slog.SetDefault(logger)
	}),
	fx.Provide(provideMetrics),
	fx.Provide(provideTracer),
)

func provideTracer(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	if !cfg.OTELEnabled {
		logger.Info("tracing disabled")
		return sdktrace.NewTracerProvider(), nil
	}

	tp, err := observability.InitTracer(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down tracer")
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

// MetricsResult holds Prometheus metrics components.
type MetricsResult struct {
	fx.Out
	Registry    *prometheus.Registry
	HTTPMetrics metrics.HTTPMetrics
}

func provideMetrics() MetricsResult {
	reg, httpMetrics := observability.NewMetricsRegistry()
	return MetricsResult{
		Registry:    reg,
		HTTPMetrics: httpMetrics,
	}
}

// ResilienceModule provides the resilience primitives the service wires
// into concrete seams: a circuit breaker around the ClearlyDefined GET, a
// retrier and timeout around content-cache queries, a bulkhead as the
// worker pool's admission gate, and a shutdown coordinator draining the
// admin server.
var ResilienceModule = fx.Options(
	fx.Provide(provideResilienceConfig),
	fx.Provide(provideCircuitBreakerMetrics),
	fx.Provide(provideRetryMetrics),
	fx.Provide(provideTimeoutMetrics),
	fx.Provide(provideBulkheadMetrics),
	fx.Provide(provideShutdownMetrics),
	fx.Provide(provideUpstreamBreaker),
	fx.Provide(provideCacheRetrier),
	fx.Provide(provideCacheTimeout),
	fx.Provide(provideWorkerPool),
	fx.Provide(provideShutdownCoordinator),
)

func provideResilienceConfig(cfg *config.Config) resilience.ResilienceConfig {
	return resilience.NewResilienceConfig(cfg)
}

func provideCircuitBreakerMetrics(registry *prometheus.Registry) *resilience.CircuitBreakerMetrics {
	return resilience.NewCircuitBreakerMetrics(registry)
}

func provideRetryMetrics(registry *prometheus.Registry) *resilience.RetryMetrics {
	return resilience.NewRetryMetrics(registry)
}

func provideTimeoutMetrics(registry *prometheus.Registry) *resilience.TimeoutMetrics {
	return resilience.NewTimeoutMetrics(registry)
}

func provideBulkheadMetrics(registry *prometheus.Registry) *resilience.BulkheadMetrics {
	return resilience.NewBulkheadMetrics(registry)
}

func provideShutdownMetrics(registry *prometheus.Registry) *resilience.ShutdownMetrics {
	return resilience.NewShutdownMetrics(registry)
}

func provideUpstreamBreaker(
	resCfg resilience.ResilienceConfig,
	cbMetrics *resilience.CircuitBreakerMetrics,
	logger *slog.Logger,
) resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(
		"clearlydefined",
		resCfg.CircuitBreaker,
		resilience.WithFailureClassifier(clearlydefined.BreakerFailure),
		resilience.WithMetrics(cbMetrics),
		resilience.WithLogger(logger),
	)
}

func provideCacheRetrier(
	resCfg resilience.ResilienceConfig,
	retryMetrics *resilience.RetryMetrics,
	logger *slog.Logger,
) resilience.Retrier {
	return resilience.NewRetrier(
		"content-cache",
		resCfg.Retry,
		resilience.WithRetryMetrics(retryMetrics),
		resilience.WithRetryLogger(logger),
	)
}

func provideCacheTimeout(
	resCfg resilience.ResilienceConfig,
	timeoutMetrics *resilience.TimeoutMetrics,
	logger *slog.Logger,
) resilience.Timeout {
	return resilience.NewTimeout(
		"content-cache",
		resCfg.Timeout.Database,
		resilience.WithTimeoutMetrics(timeoutMetrics),
		resilience.WithTimeoutLogger(logger),
	)
}

func provideWorkerPool(
	cfg *config.Config,
	bulkheadMetrics *resilience.BulkheadMetrics,
	logger *slog.Logger,
) resilience.Bulkhead {
	return resilience.NewBulkhead(
		"enrichment-workers",
		resilience.BulkheadConfig{
			MaxConcurrent: cfg.WorkerPoolSize,
			MaxWaiting:    cfg.WorkerPoolMaxWaiting,
		},
		resilience.WithBulkheadMetrics(bulkheadMetrics),
		resilience.WithBulkheadLogger(logger),
	)
}

func provideShutdownCoordinator(
	resCfg resilience.ResilienceConfig,
	shutdownMetrics *resilience.ShutdownMetrics,
	logger *slog.Logger,
) resilience.ShutdownCoordinator {
	return resilience.NewShutdownCoordinator(
		resCfg.Shutdown,
		resilience.WithShutdownMetrics(shutdownMetrics),
		resilience.WithShutdownLogger(logger),
	)
}

// PostgresModule provides the content-cache database pool.
var PostgresModule = fx.Options(
	fx.Provide(providePoolConfig),
	fx.Provide(providePool),
	fx.Invoke(registerPoolMetrics),
)

func registerPoolMetrics(registry *prometheus.Registry, pool postgres.Pooler, logger *slog.Logger) {
	registry.MustRegister(postgres.NewDBMetrics(pool, logger))
}

func providePoolConfig(cfg *config.Config) postgres.PoolConfig {
	return postgres.PoolConfig{
		MaxConns:        cfg.DBPoolMaxConns,
		MinConns:        cfg.DBPoolMinConns,
		MaxConnLifetime: cfg.DBPoolMaxLifetime,
	}
}

func providePool(lc fx.Lifecycle, cfg *config.Config, poolCfg postgres.PoolConfig, logger *slog.Logger) (postgres.Pooler, error) {
	ctx := context.Background()
	pool := postgres.NewResilientPool(ctx, cfg.DatabaseURL, poolCfg, cfg.IgnoreDBStartupError, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing database pool")
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

// CacheModule provides the two-tier ContentHandler: an in-process map in
// front of the durable Postgres store.
var CacheModule = fx.Options(
	fx.Provide(provideContentHandler),
	fx.Invoke(migrateContentCache),
)

func migrateContentCache(lc fx.Lifecycle, pool postgres.Pooler, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			raw := pool.Pool()
			if raw == nil {
				if cfg.IgnoreDBStartupError {
					logger.Warn("content-cache database unavailable, skipping migrations")
					return nil
				}
				return fmt.Errorf("content-cache database unavailable")
			}
			return cache.Migrate(raw)
		},
	})
}

func provideContentHandler(
	pool postgres.Pooler,
	retrier resilience.Retrier,
	timeout resilience.Timeout,
	logger *slog.Logger,
) cache.ContentHandler {
	raw := pool.Pool()
	if raw == nil {
		// Startup without a database (IGNORE_DB_STARTUP_ERROR): the
		// in-process tier alone still satisfies the cache contract.
		logger.Warn("content cache running without durable backing store")
		return cache.NewMemory()
	}
	return cache.NewTwoTier(cache.NewPostgres(raw, retrier, timeout), logger)
}

// EnrichmentModule wires the request manager: tracker, HTTP client,
// ingress throttle, metrics, and the facade with its coordinator.
var EnrichmentModule = fx.Options(
	fx.Provide(ratelimit.NewTracker),
	fx.Provide(provideClearlyDefinedClient),
	fx.Provide(provideIngressThrottle),
	fx.Provide(provideEnrichmentMetrics),
	fx.Provide(provideManager),
	fx.Invoke(startManager),
)

func provideClearlyDefinedClient(
	cfg *config.Config,
	tracker *ratelimit.Tracker,
	breaker resilience.CircuitBreaker,
	tp *sdktrace.TracerProvider,
	logger *slog.Logger,
) *clearlydefined.Client {
	return clearlydefined.NewClient(
		cfg.ClearlyDefinedHTTPTimeout,
		tracker,
		clearlydefined.WithCircuitBreaker(breaker),
		clearlydefined.WithLogger(logger),
		clearlydefined.WithTracerProvider(tp),
	)
}

func provideIngressThrottle(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) runtimeutil.RateLimiter {
	if cfg.RedisURL == "" {
		return runtimeutil.NewNopRateLimiter()
	}

	client, err := redisinfra.NewClient(cfg.RedisURL, 5*time.Second)
	if err != nil {
		logger.Warn("redis unavailable, ingress throttle disabled",
			slog.String("error", err.Error()))
		return runtimeutil.NewNopRateLimiter()
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return redisinfra.NewRedisRateLimiter(
		client.Client(),
		redisinfra.WithRedisDefaultRate(runtimeutil.NewRate(cfg.IngressRateLimitRPS, time.Second)),
		redisinfra.WithKeyPrefix("cdenrich:throttle:"),
		redisinfra.WithFallbackLimiter(runtimeutil.NewNopRateLimiter()),
	)
}

func provideEnrichmentMetrics(registry *prometheus.Registry) *enrichapp.Metrics {
	return enrichapp.NewMetrics(registry)
}

func provideManager(
	cfg *config.Config,
	client *clearlydefined.Client,
	handler cache.ContentHandler,
	tracker *ratelimit.Tracker,
	pool resilience.Bulkhead,
	throttle runtimeutil.RateLimiter,
	logger *slog.Logger,
	enrichMetrics *enrichapp.Metrics,
) *enrichapp.Manager {
	return enrichapp.NewManager(
		client,
		handler,
		tracker,
		pool,
		throttle,
		logger,
		enrichMetrics,
		enrichapp.ManagerConfig{
			Coordinator: enrichapp.CoordinatorConfig{
				PollInterval: cfg.QueuePollInterval,
				BackoffCap:   cfg.RateLimitBackoffCap,
			},
			MaxAttempts:  cfg.MaxAttempts,
			DrainTimeout: cfg.ShutdownDrainPeriod,
		},
	)
}

func startManager(lc fx.Lifecycle, manager *enrichapp.Manager, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			manager.Start()
			logger.Info("enrichment manager started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return manager.Shutdown(ctx)
		},
	})
}

// TransportModule provides the admin HTTP server.
var TransportModule = fx.Options(
	fx.Provide(provideHealthHandler),
	fx.Provide(httpTransport.NewStatusHandler),
	fx.Provide(provideSubmitTestHandler),
	fx.Provide(provideRouter),
	fx.Invoke(startAdminServer),
)

func provideHealthHandler(registry *prometheus.Registry, pool postgres.Pooler, cfg *config.Config) healthcheck.Handler {
	return httpTransport.NewHealthHandler(registry, postgres.NewDatabaseCheck(pool, cfg.HealthCheckDBTimeout))
}

func provideSubmitTestHandler(manager *enrichapp.Manager, logger *slog.Logger) *httpTransport.SubmitTestHandler {
	return httpTransport.NewSubmitTestHandler(manager, logger)
}

func provideRouter(
	cfg *config.Config,
	logger *slog.Logger,
	registry *prometheus.Registry,
	httpMetrics metrics.HTTPMetrics,
	health healthcheck.Handler,
	status *httpTransport.StatusHandler,
	submit *httpTransport.SubmitTestHandler,
	shutdownCoord resilience.ShutdownCoordinator,
) *chi.Mux {
	return httpTransport.NewRouter(
		httpTransport.RouterConfig{
			Development:    cfg.IsDevelopment(),
			MaxRequestSize: cfg.MaxRequestSize,
			RateLimitRPS:   cfg.AdminRateLimitRPS,
			TracingEnabled: cfg.OTELEnabled,
		},
		logger,
		registry,
		httpMetrics,
		health,
		status,
		submit,
		middleware.ShutdownCoordinator(shutdownCoord),
	)
}

func startAdminServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	router *chi.Mux,
	shutdownCoord resilience.ShutdownCoordinator,
	logger *slog.Logger,
) {
	addr := net.JoinHostPort(cfg.InternalBindAddress, strconv.Itoa(cfg.InternalPort))
	server := httpTransport.NewServer(addr, router,
		cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout, cfg.HTTPReadHeaderTimeout)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger.Info("admin server listening", slog.String("addr", addr))
			go func() {
				if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("admin server failed", slog.String("error", err.Error()))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCoord.InitiateShutdown()
			if err := shutdownCoord.WaitForDrain(ctx); err != nil {
				logger.Warn("admin server drain incomplete", slog.String("error", err.Error()))
			}
			return server.Shutdown(ctx)
		},
	})
}
