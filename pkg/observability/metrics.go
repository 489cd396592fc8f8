// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the scoregate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// OMRBuckets defines histogram buckets suited for engine run latencies,
// ranging from 50ms to the three-minute write timeout.
var OMRBuckets = []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 180}

// Conversion outcome label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeDegraded  = "degraded"
)

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoregate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoregate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: OMRBuckets,
		},
		[]string{"method", "route"},
	)

	// ConversionsTotal counts finished conversions. kind is empty for
	// succeeded conversions and names the failure otherwise.
	ConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoregate_conversions_total",
			Help: "Conversions by outcome",
		},
		[]string{"outcome", "kind"},
	)

	// EngineDuration records the duration of the whole conversion pipeline
	// (engine run, discovery, extraction) in seconds.
	EngineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoregate_engine_duration_seconds",
			Help:    "Engine pipeline duration",
			Buckets: OMRBuckets,
		},
		[]string{"outcome"},
	)

	// EngineInflight tracks engine runs currently holding a concurrency slot.
	EngineInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoregate_engine_inflight",
			Help: "Engine runs in flight",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoregate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ConversionsTotal,
		EngineDuration,
		EngineInflight,
		RateLimitRejectedTotal,
	)
}

// RecordConversion updates the conversion counters for one finished
// conversion.
func RecordConversion(kind string, seconds float64) {
	outcome := OutcomeSucceeded
	if kind != "" {
		outcome = OutcomeDegraded
	}
	ConversionsTotal.WithLabelValues(outcome, kind).Inc()
	EngineDuration.WithLabelValues(outcome).Observe(seconds)
}
