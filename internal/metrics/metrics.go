package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ramadan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route"},
	)

	GeminiAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_gemini_attempts_total",
			Help: "Gemini generateContent attempts by key slot and outcome",
		},
		[]string{"key_index", "outcome"},
	)

	GeminiDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_gemini_dispatch_total",
			Help: "Gemini dispatch calls by final outcome",
		},
		[]string{"outcome"},
	)

	GeminiDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ramadan_gemini_dispatch_duration_seconds",
			Help:    "Wall time of a Gemini dispatch including key rotation",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_upstream_requests_total",
			Help: "Requests sent to third-party content APIs",
		},
		[]string{"upstream", "status"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ramadan_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"upstream"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_rate_limit_hits_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
		[]string{"route"},
	)

	AnalysisJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ramadan_analysis_jobs_total",
			Help: "Asynchronous recitation analyses by final status",
		},
		[]string{"status"},
	)

	CredentialPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ramadan_gemini_credential_pool_size",
			Help: "Number of Gemini API keys loaded at startup",
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ramadan_active_connections",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	InstanceInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ramadan_instance_info",
			Help: "Instance information (always 1)",
		},
		[]string{"version"},
	)
)

func RecordHTTPRequest(route string, status int, durationSec float64) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(durationSec)
}

func RecordGeminiAttempt(keyIndex int, outcome string) {
	GeminiAttemptsTotal.WithLabelValues(strconv.Itoa(keyIndex), outcome).Inc()
}

// RecordDispatch counts a finished dispatch. Zero durations are not observed.
func RecordDispatch(outcome string, durationSec float64) {
	GeminiDispatchTotal.WithLabelValues(outcome).Inc()
	if durationSec > 0 {
		GeminiDispatchDuration.Observe(durationSec)
	}
}

func RecordUpstreamRequest(upstream, status string) {
	UpstreamRequestsTotal.WithLabelValues(upstream, status).Inc()
}

func RecordCacheHit(namespace string) {
	CacheHits.WithLabelValues(namespace).Inc()
}

func RecordCacheMiss(namespace string) {
	CacheMisses.WithLabelValues(namespace).Inc()
}

func RecordRateLimitHit(route string) {
	RateLimitHits.WithLabelValues(route).Inc()
}

func RecordAnalysisJob(status string) {
	AnalysisJobsTotal.WithLabelValues(status).Inc()
}

func SetCircuitBreakerState(upstream string, state int) {
	CircuitBreakerState.WithLabelValues(upstream).Set(float64(state))
}

func SetCredentialPoolSize(n int) {
	CredentialPoolSize.Set(float64(n))
}

func InitInstanceMetrics(version string) {
	InstanceInfo.WithLabelValues(version).Set(1)
}

func IncrementActiveConnections() {
	ActiveConnections.Inc()
}

func DecrementActiveConnections() {
	ActiveConnections.Dec()
}
