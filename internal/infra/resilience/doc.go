// Package resilience provides the fault-tolerance primitives the
// enrichment service wires into its four infrastructure seams:
//
//   - CircuitBreaker guards the ClearlyDefined HTTP GET. An open circuit
//     turns a dead upstream into an immediate requeue instead of a held
//     worker slot and a socket timeout per attempt. It never retries; the
//     coordinator's requeue path is the only retry mechanism on the fetch
//     side.
//   - Retrier and Timeout sit under the content-cache's Postgres queries,
//     so a flapping connection pool stays invisible to Submit's
//     synchronous cache fast path.
//   - Bulkhead is the worker pool's admission gate: the coordinator hands
//     every admitted request through it, which bounds concurrent
//     enrichment fetches to the configured pool size.
//   - ShutdownCoordinator drains the admin HTTP server, rejecting new
//     requests with a 503 while in-flight ones finish.
//
// # Configuration
//
// The package is configured via environment variables, mapped through
// NewResilienceConfig:
//
//	# Circuit Breaker (ClearlyDefined GET)
//	CB_MAX_REQUESTS=3          # Requests allowed in half-open state
//	CB_INTERVAL=10s            # Cyclic period for clearing counts
//	CB_TIMEOUT=30s             # Time to wait before half-open
//	CB_FAILURE_THRESHOLD=5     # Failures to trip the breaker
//
//	# Retry (content-cache queries)
//	RETRY_MAX_ATTEMPTS=3       # Maximum attempts per query
//	RETRY_INITIAL_DELAY=100ms  # Initial backoff delay
//	RETRY_MAX_DELAY=5s         # Maximum backoff delay cap
//	RETRY_MULTIPLIER=2.0       # Exponential multiplier
//
//	# Timeout (content-cache statements)
//	TIMEOUT_DATABASE=5s        # Per-statement bound
//
//	# Bulkhead (ResilienceConfig.Bulkhead; the worker pool itself is
//	# sized by WORKER_POOL_SIZE and WORKER_POOL_MAX_WAITING)
//	BULKHEAD_MAX_CONCURRENT=8  # Maximum concurrent executions
//	BULKHEAD_MAX_WAITING=256   # Maximum waiting operations
//
// # Error Codes
//
// | Code     | Name               | Description                               |
// |----------|--------------------|-------------------------------------------|
// | RES-001  | CircuitOpen        | Circuit breaker is open, fetch rejected   |
// | RES-002  | BulkheadFull       | Worker pool saturated, request requeued   |
// | RES-003  | TimeoutExceeded    | Content-cache statement timed out         |
// | RES-004  | MaxRetriesExceeded | Content-cache retry attempts exhausted    |
//
// # Usage
//
// Configuration is loaded via the main config package and validated at startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err) // Fail fast on invalid config
//	}
//	resilienceCfg := resilience.NewResilienceConfig(cfg)
//	if err := resilienceCfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package resilience
