// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch metrics track the resilient fetch pipeline
var (
	// FetchCacheHitsTotal counts fetches served from the content cache
	FetchCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cache_hits_total",
			Help: "Total number of fetches served from the content cache",
		},
	)

	// FetchCacheMissesTotal counts fetches that had to reach the network
	FetchCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cache_misses_total",
			Help: "Total number of fetches not satisfied by the content cache",
		},
	)

	// FetchStaleServedTotal counts stale cache entries served while a
	// background revalidation was triggered
	FetchStaleServedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_stale_served_total",
			Help: "Total number of stale cache entries served during revalidation",
		},
	)

	// FetchAttemptsTotal counts network fetch attempts by result
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total number of network fetch attempts",
		},
		[]string{"result"}, // result: success, failure
	)

	// FetchDuration measures time spent fetching a page over the network
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Time taken to fetch a page over the network",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// FetchDedupCoalescedTotal counts fetches coalesced into an already
	// in-flight request for the same URL
	FetchDedupCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_dedup_coalesced_total",
			Help: "Total number of fetches coalesced into an in-flight request",
		},
	)

	// RateLimitedTotal counts operations rejected by a rate limiter
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of operations rejected by a rate limiter",
		},
		[]string{"scope"}, // scope: host, channel
	)

	// CircuitOpenTotal counts operations rejected by an open circuit
	CircuitOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_open_total",
			Help: "Total number of operations rejected by an open circuit",
		},
		[]string{"key"},
	)
)

// Watcher metrics track target checks and change detection
var (
	// TargetsActive tracks the number of active watch targets
	TargetsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_targets_active",
			Help: "Number of active watch targets",
		},
	)

	// CheckDuration measures time to check a single target
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watch_check_duration_seconds",
			Help:    "Time taken to check a watch target",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"target_id"},
	)

	// ChangesDetectedTotal counts content changes detected per target
	ChangesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_changes_detected_total",
			Help: "Total number of content changes detected",
		},
		[]string{"target_id"},
	)

	// CheckErrorsTotal counts check failures by target and error kind
	CheckErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_check_errors_total",
			Help: "Total number of failed target checks",
		},
		[]string{"target_id", "error_kind"},
	)
)

// Notification metrics track delivery to configured channels
var (
	// NotificationsSentTotal counts notification deliveries by channel and status
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"channel", "status"},
	)

	// NotificationDuration measures time to deliver a notification
	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Time taken to deliver a notification",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"channel"},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordOperationDuration records the duration of a named database operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
