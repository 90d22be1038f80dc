// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparklab_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparklab_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Generation metrics
	generationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparklab_generations_created_total",
			Help: "Total number of generations queued, by engine",
		},
		[]string{"engine"},
	)

	generationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparklab_generations_completed_total",
			Help: "Total number of generations reaching a terminal status",
		},
		[]string{"engine", "status"},
	)

	quotaDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sparklab_quota_denials_total",
			Help: "Total number of create requests denied by the free plan limit",
		},
	)

	jobRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sparklab_job_retries_total",
			Help: "Total number of generation jobs rescheduled after a failure",
		},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sparklab_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// RecordGenerationCreated counts a queued generation.
func RecordGenerationCreated(engine string) {
	generationsCreated.WithLabelValues(engine).Inc()
}

// RecordGenerationCompleted counts a generation reaching status.
func RecordGenerationCompleted(engine, status string) {
	generationsCompleted.WithLabelValues(engine, status).Inc()
}

// RecordQuotaDenial counts a LIMIT_REACHED response.
func RecordQuotaDenial() {
	quotaDenials.Inc()
}

// RecordJobRetry counts a rescheduled job.
func RecordJobRetry() {
	jobRetries.Inc()
}

// RecordRateLimited counts a request rejected with RATE_LIMITED.
func RecordRateLimited() {
	rateLimited.Inc()
}
