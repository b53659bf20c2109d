package ffetch

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle
// and reliability layers. All Record methods are no-ops on a nil receiver,
// so collection stays optional. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState prometheus.Gauge

	rateLimiterTokens prometheus.Gauge

	dedupeHits   *prometheus.CounterVec
	dedupeMisses *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffetch_requests_total",
				Help: "Total number of calls made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ffetch_request_duration_seconds",
				Help:    "Duration of calls in seconds, including retries and waits",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ffetch_requests_in_flight",
				Help: "Number of calls currently pending",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffetch_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		circuitBreakerState: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "ffetch_circuit_breaker_state",
				Help: "Current state of the circuit breaker (0=closed, 1=open)",
			},
		),
		rateLimiterTokens: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "ffetch_rate_limiter_tokens",
				Help: "Rate limiter tokens available after the last wait",
			},
		),
		dedupeHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffetch_dedupe_hits_total",
				Help: "Total number of calls coalesced onto an in-flight request",
			},
			[]string{"method", "endpoint"},
		),
		dedupeMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffetch_dedupe_misses_total",
				Help: "Total number of deduplicated calls that owned the request",
			},
			[]string{"method", "endpoint"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ffetch_errors_total",
				Help: "Total number of failed calls by error type",
			},
			[]string{"type", "method", "endpoint"},
		),
	}

	if r, ok := registry.(*prometheus.Registry); ok {
		mc.registry = r
	}

	return mc
}

// RecordRequest records the count and duration of a settled call.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}

	attemptStr := strconv.Itoa(attempt)
	mc.retriesTotal.WithLabelValues(method, endpoint, attemptStr).Inc()
}

// RecordCircuitState sets the breaker gauge.
func (mc *MetricsCollector) RecordCircuitState(open bool) {
	if mc == nil {
		return
	}

	if open {
		mc.circuitBreakerState.Set(1)
	} else {
		mc.circuitBreakerState.Set(0)
	}
}

// RecordRateLimiterTokens sets the available-token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(tokens float64) {
	if mc == nil {
		return
	}

	mc.rateLimiterTokens.Set(tokens)
}

// RecordDedupeHit increments the coalesced-call counter.
func (mc *MetricsCollector) RecordDedupeHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.dedupeHits.WithLabelValues(method, endpoint).Inc()
}

// RecordDedupeMiss increments the owning-call counter.
func (mc *MetricsCollector) RecordDedupeMiss(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.dedupeMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordError increments the error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry exposes the underlying registry when the collector was built
// on a plain *prometheus.Registry, and nil otherwise.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
