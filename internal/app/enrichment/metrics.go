package enrichment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the enrichment manager.
// All methods are nil-safe so tests can run without a registry.
type Metrics struct {
	queueDepth        prometheus.Gauge
	activeFutures     prometheus.Gauge
	cacheLookups      *prometheus.CounterVec
	requeues          *prometheus.CounterVec
	completed         *prometheus.CounterVec
	rateLimitRemain   prometheus.Gauge
	rateLimitWaits    prometheus.Counter
	rateLimitWaitTime prometheus.Histogram
	fetchDuration     prometheus.Histogram
}

// NewMetrics creates and registers the enrichment metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_queue_depth",
			Help: "Number of requests waiting in the coordinator queue",
		}),
		activeFutures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_active_futures",
			Help: "Futures handed to callers that have not yet resolved",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_cache_lookups_total",
			Help: "Submit-time content cache lookups by result (hit, absent, miss)",
		}, []string{"result"}),
		requeues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_requeues_total",
			Help: "Requests re-appended to the queue tail by reason",
		}, []string{"reason"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_completed_total",
			Help: "Futures resolved by outcome",
		}, []string{"outcome"}),
		rateLimitRemain: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_rate_limit_remaining",
			Help: "Most recently observed x-ratelimit-remaining value (-1 when unknown)",
		}),
		rateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrichment_rate_limit_waits_total",
			Help: "Coordinator sleeps taken because the rate-limit window was exhausted",
		}),
		rateLimitWaitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "enrichment_rate_limit_wait_seconds",
			Help:    "Duration of coordinator rate-limit sleeps",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "enrichment_fetch_duration_seconds",
			Help:    "Duration of one worker HTTP round trip",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.queueDepth,
			m.activeFutures,
			m.cacheLookups,
			m.requeues,
			m.completed,
			m.rateLimitRemain,
			m.rateLimitWaits,
			m.rateLimitWaitTime,
			m.fetchDuration,
		)
	}
	return m
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) SetActiveFutures(n int) {
	if m == nil {
		return
	}
	m.activeFutures.Set(float64(n))
}

func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRequeue(reason string) {
	if m == nil {
		return
	}
	m.requeues.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCompleted(outcome string) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetRateLimitRemaining(n int64) {
	if m == nil {
		return
	}
	m.rateLimitRemain.Set(float64(n))
}

func (m *Metrics) RecordRateLimitWait(seconds float64) {
	if m == nil {
		return
	}
	m.rateLimitWaits.Inc()
	m.rateLimitWaitTime.Observe(seconds)
}

func (m *Metrics) RecordFetchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(seconds)
}
