// Package config provides environment-based configuration loading.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration values for the enrichment service.
// Required fields will cause startup failure if not provided.
// Optional fields have sensible defaults.
type Config struct {
	// Required - Postgres connection string backing the persistent ContentHandler.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true" validate:"required"`

	// Database Pool Configuration
	// DBPoolMaxConns is the maximum number of connections in the pool. Default: 25.
	DBPoolMaxConns int32 `envconfig:"DB_POOL_MAX_CONNS" default:"25" validate:"gte=1"`
	// DBPoolMinConns is the minimum number of connections in the pool. Default: 5.
	DBPoolMinConns int32 `envconfig:"DB_POOL_MIN_CONNS" default:"5" validate:"gte=0"`
	// DBPoolMaxLifetime is the maximum lifetime of a connection. Default: 1h.
	DBPoolMaxLifetime time.Duration `envconfig:"DB_POOL_MAX_LIFETIME" default:"1h" validate:"gt=0"`

	// Optional with defaults
	Port        int    `envconfig:"PORT" default:"8080" validate:"gte=0,lte=65535"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Env         string `envconfig:"ENV" default:"development"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"cdenrich" validate:"required"`

	// Error response contract (RFC 7807) for the admin HTTP surface.
	ProblemBaseURL string `envconfig:"PROBLEM_BASE_URL" default:"https://cdenrich.example.com/problems/"`

	// OpenTelemetry
	OTELEnabled          bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELExporterEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELExporterInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`

	// Internal/admin server
	// InternalPort is the port for the admin surface (/healthz, /readyz, /metrics, /debug/status). Default: 8081.
	InternalPort int `envconfig:"INTERNAL_PORT" default:"8081" validate:"gte=0,lte=65535"`
	// InternalBindAddress is the bind address for the admin server.
	// Default: "127.0.0.1" (loopback only) for security isolation.
	InternalBindAddress string `envconfig:"INTERNAL_BIND_ADDRESS" default:"127.0.0.1" validate:"required"`
	// MaxRequestSize bounds request bodies on the admin debug endpoints. Default: 1 MiB.
	MaxRequestSize int64 `envconfig:"MAX_REQUEST_SIZE" default:"1048576" validate:"gt=0"`
	// AdminRateLimitRPS bounds per-IP requests on the admin debug endpoints. Default: 10.
	AdminRateLimitRPS int `envconfig:"ADMIN_RATE_LIMIT_RPS" default:"10" validate:"gte=1"`
	// IgnoreDBStartupError keeps the process up when the content-cache
	// database is unreachable at boot; readiness stays red until it heals.
	IgnoreDBStartupError bool `envconfig:"IGNORE_DB_STARTUP_ERROR" default:"false"`

	// Server Timeouts
	HTTPReadTimeout       time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s" validate:"gt=0"`
	HTTPWriteTimeout      time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	HTTPIdleTimeout       time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" validate:"gt=0"`
	HTTPReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"10s" validate:"gt=0"`

	// ClearlyDefined upstream
	// ClearlyDefinedBaseURL is the upstream base URL. It is loaded and validated but no component
	// reads it; the ClearlyDefined client fetches each Request's URI as given.
	ClearlyDefinedBaseURL string `envconfig:"CLEARLYDEFINED_BASE_URL" default:"https://api.clearlydefined.io" validate:"required,url"`
	// ClearlyDefinedHTTPTimeout bounds a single GET; there is no per-request cancellation above this.
	ClearlyDefinedHTTPTimeout time.Duration `envconfig:"CLEARLYDEFINED_HTTP_TIMEOUT" default:"30s" validate:"gt=0"`

	// Worker pool / coordinator
	// WorkerPoolSize is the bounded number of concurrent Worker executions. Default: 8.
	WorkerPoolSize int `envconfig:"WORKER_POOL_SIZE" default:"8" validate:"gte=1"`
	// WorkerPoolMaxWaiting bounds how many admitted-but-not-yet-running requests may queue behind the pool.
	WorkerPoolMaxWaiting int `envconfig:"WORKER_POOL_MAX_WAITING" default:"256" validate:"gte=0"`
	// QueuePollInterval is the coordinator's blocking-poll timeout. Default: 1s.
	QueuePollInterval time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"1s" validate:"gt=0"`
	// RateLimitBackoffCap bounds the coordinator's exhausted-window backoff. Default: 5s.
	RateLimitBackoffCap time.Duration `envconfig:"RATE_LIMIT_BACKOFF_CAP" default:"5s" validate:"gt=0"`
	// MaxAttempts is an opt-in cutoff after which a Request's Worker completes with MaxAttemptsExceeded
	// instead of requeuing it forever. Zero (the default) keeps retries unbounded.
	MaxAttempts int `envconfig:"MAX_ATTEMPTS" default:"0" validate:"gte=0"`

	// Ingress throttle (optional, independent of the header-driven RateLimitTracker)
	// RedisURL, when set, backs an ingress-side throttle in front of Submit. Empty disables it.
	RedisURL string `envconfig:"REDIS_URL"`
	// IngressRateLimitRPS bounds how fast cache-missing submissions are admitted into the queue;
	// all of them share one bucket, so repeated submissions of the same URI each count.
	IngressRateLimitRPS int `envconfig:"INGRESS_RATE_LIMIT_RPS" default:"50" validate:"gte=1"`

	// Resilience - Circuit Breaker (guards the ClearlyDefined HTTP GET)
	CBMaxRequests      int           `envconfig:"CB_MAX_REQUESTS" default:"3" validate:"gte=1"`
	CBInterval         time.Duration `envconfig:"CB_INTERVAL" default:"10s" validate:"gt=0"`
	CBTimeout          time.Duration `envconfig:"CB_TIMEOUT" default:"30s" validate:"gt=0"`
	CBFailureThreshold int           `envconfig:"CB_FAILURE_THRESHOLD" default:"5" validate:"gte=1"`

	// Resilience - Retry (used by the Postgres ContentHandler's transient-connection retries)
	RetryMaxAttempts  int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3" validate:"gte=1"`
	RetryInitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"100ms" validate:"gt=0"`
	RetryMaxDelay     time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s" validate:"gt=0"`
	RetryMultiplier   float64       `envconfig:"RETRY_MULTIPLIER" default:"2.0" validate:"gte=1"`

	// Resilience - Timeout
	TimeoutDefault     time.Duration `envconfig:"TIMEOUT_DEFAULT" default:"30s" validate:"gt=0"`
	TimeoutDatabase    time.Duration `envconfig:"TIMEOUT_DATABASE" default:"5s" validate:"gt=0"`
	TimeoutExternalAPI time.Duration `envconfig:"TIMEOUT_EXTERNAL_API" default:"10s" validate:"gt=0"`

	// Resilience - Bulkhead (mapped into ResilienceConfig.Bulkhead; the Worker pool's admission
	// gate is sized by WORKER_POOL_SIZE and WORKER_POOL_MAX_WAITING, not by these)
	BulkheadMaxConcurrent int `envconfig:"BULKHEAD_MAX_CONCURRENT" default:"8" validate:"gte=1"`
	BulkheadMaxWaiting    int `envconfig:"BULKHEAD_MAX_WAITING" default:"256" validate:"gte=0"`

	// Resilience - Graceful Shutdown
	ShutdownDrainPeriod time.Duration `envconfig:"SHUTDOWN_DRAIN_PERIOD" default:"30s" validate:"gt=0"`
	ShutdownGracePeriod time.Duration `envconfig:"SHUTDOWN_GRACE_PERIOD" default:"5s" validate:"gte=0"`

	// Health Check
	HealthCheckDBTimeout time.Duration `envconfig:"HEALTH_CHECK_DB_TIMEOUT" default:"2s" validate:"gt=0"`
}

// Redacted returns a safe string representation of the Config for logging.
func (c *Config) Redacted() string {
	safe := *c
	safe.DatabaseURL = "[REDACTED]"
	if safe.RedisURL != "" {
		safe.RedisURL = "[REDACTED]"
	}
	return fmt.Sprintf("%+v", safe)
}

// Load reads configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

var structValidator = validator.New()

// Validate runs the struct-tag validation pass, then the manual checks that
// need cross-field or business-level reasoning the tags can't express.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.OTELEnabled && strings.TrimSpace(c.OTELExporterEndpoint) == "" {
		return fmt.Errorf("OTEL_ENABLED is true but OTEL_EXPORTER_OTLP_ENDPOINT is empty")
	}

	if c.InternalPort != 0 && c.InternalPort == c.Port {
		return fmt.Errorf("INTERNAL_PORT must differ from PORT")
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))

	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("invalid ENV: must be one of development, staging, production, test")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: must be one of debug, info, warn, error")
	}

	if err := validateProblemBaseURL(c.ProblemBaseURL); err != nil {
		return err
	}

	if c.DBPoolMinConns > c.DBPoolMaxConns {
		return fmt.Errorf("invalid DB_POOL_MIN_CONNS: must be less than or equal to DB_POOL_MAX_CONNS")
	}

	if c.RetryMaxDelay < c.RetryInitialDelay {
		return fmt.Errorf("invalid RETRY_MAX_DELAY: must be greater than or equal to RETRY_INITIAL_DELAY")
	}

	return nil
}

func validateProblemBaseURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("invalid PROBLEM_BASE_URL: must not be empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid PROBLEM_BASE_URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid PROBLEM_BASE_URL: must be an absolute URL (scheme + host)")
	}
	if !strings.HasSuffix(trimmed, "/") {
		return fmt.Errorf("invalid PROBLEM_BASE_URL: must end with a trailing slash")
	}
	return nil
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
