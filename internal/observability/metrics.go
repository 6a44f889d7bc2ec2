package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec

	gradingSubmissionsTotal *prometheus.CounterVec
	gradingManualItemsTotal *prometheus.CounterVec
	gradingFlagsTotal       *prometheus.CounterVec
	gradingDurationSeconds  *prometheus.HistogramVec
	notificationsPublished  *prometheus.CounterVec
	jobsProcessedTotal      *prometheus.CounterVec
	reportCacheLookupsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests served, by surface (learner or admin).",
		}, []string{"surface", "method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gema",
			Subsystem: "http",
			Name:      "latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"surface", "method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Error responses returned by the API.",
		}, []string{"surface", "method", "route", "status"})

		gradingSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "submissions_total",
			Help:      "Submissions graded, by resulting status.",
		}, []string{"status"})

		gradingManualItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "manual_items_total",
			Help:      "Items in manual grading batches, by outcome.",
		}, []string{"outcome"})

		gradingFlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "flags_total",
			Help:      "Grading dispute events, by action.",
		}, []string{"action"})

		gradingDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "duration_seconds",
			Help:      "Time spent grading and persisting a submission.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "notifications",
			Name:      "published_total",
			Help:      "Notifications persisted and fanned out, by type.",
		}, []string{"type"})

		jobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Background jobs handled, by type and result.",
		}, []string{"type", "result"})

		reportCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "reports",
			Name:      "cache_lookups_total",
			Help:      "Submission report cache lookups, by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			gradingSubmissionsTotal, gradingManualItemsTotal, gradingFlagsTotal, gradingDurationSeconds,
			notificationsPublished, jobsProcessedTotal, reportCacheLookupsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingSubmissions counts graded submissions by status.
func GradingSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingSubmissionsTotal
}

// GradingManualItems counts manual grading outcomes per item.
func GradingManualItems() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingManualItemsTotal
}

// GradingFlags counts dispute filings and resolutions.
func GradingFlags() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingFlagsTotal
}

// GradingDuration observes grading latency per operation.
func GradingDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingDurationSeconds
}

// NotificationsPublishedTotal counts published notifications by type.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// JobsProcessed counts handled background jobs.
func JobsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return jobsProcessedTotal
}

// ReportCacheLookups counts report cache hits and misses.
func ReportCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return reportCacheLookupsTotal
}
