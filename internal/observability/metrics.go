package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	apiRequestsTotal        *prometheus.CounterVec
	apiLatencySeconds       *prometheus.HistogramVec
	apiErrorsTotal          *prometheus.CounterVec
	scoringRunsTotal        *prometheus.CounterVec
	propagationRetriesTotal prometheus.Counter
	rollupRebuildSeconds    prometheus.Histogram
	rollupFailuresTotal     prometheus.Counter
	notificationsSentTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casecamp_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casecamp_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casecamp_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		scoringRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casecamp_scoring_runs_total",
			Help: "Scoring engine invocations partitioned by outcome.",
		}, []string{"outcome"})

		propagationRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casecamp_propagation_retries_total",
			Help: "Transactional conflicts retried by the delta propagator.",
		})

		rollupRebuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "casecamp_rollup_rebuild_seconds",
			Help:    "Duration of analytics rollup rebuilds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		rollupFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casecamp_rollup_failures_total",
			Help: "Analytics rollup rebuilds that aborted with an error.",
		})

		notificationsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casecamp_notifications_sent_total",
			Help: "Notifications recorded for delivery, partitioned by type.",
		}, []string{"type"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			scoringRunsTotal,
			propagationRetriesTotal,
			rollupRebuildSeconds,
			rollupFailuresTotal,
			notificationsSentTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ScoringRuns exposes the scoring outcome counter. Outcome labels are
// "applied", "skipped" and "failed".
func ScoringRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringRunsTotal
}

// PropagationRetries exposes the conflict retry counter.
func PropagationRetries() prometheus.Counter {
	RegisterMetrics()
	return propagationRetriesTotal
}

// RollupRebuildDuration exposes the rollup rebuild latency histogram.
func RollupRebuildDuration() prometheus.Histogram {
	RegisterMetrics()
	return rollupRebuildSeconds
}

// RollupFailures exposes the rollup failure counter.
func RollupFailures() prometheus.Counter {
	RegisterMetrics()
	return rollupFailuresTotal
}

// NotificationsSent exposes the notification delivery counter.
func NotificationsSent() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsSentTotal
}
