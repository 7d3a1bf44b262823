package metrics

import (
	"fmt"
	"time"
)

// RecordCacheHit records a fetch served from the content cache.
// When stale is true, the entry was past its TTL and a background
// revalidation was triggered for it.
func RecordCacheHit(stale bool) {
	FetchCacheHitsTotal.Inc()
	if stale {
		FetchStaleServedTotal.Inc()
	}
}

// RecordCacheMiss records a fetch that was not satisfied by the cache.
func RecordCacheMiss() {
	FetchCacheMissesTotal.Inc()
}

// RecordFetch records the result and duration of a network fetch.
// Status should be either "success" or "failure".
func RecordFetch(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	FetchAttemptsTotal.WithLabelValues(status).Inc()
	FetchDuration.Observe(duration.Seconds())
}

// RecordDedupCoalesced records a fetch that attached to an in-flight
// request for the same URL instead of starting its own.
func RecordDedupCoalesced() {
	FetchDedupCoalescedTotal.Inc()
}

// RecordRateLimited records an operation rejected by a rate limiter.
// Scope identifies which limiter rejected it (e.g. "host", "channel").
func RecordRateLimited(scope string) {
	RateLimitedTotal.WithLabelValues(scope).Inc()
}

// RecordCircuitOpen records an operation rejected by an open circuit.
func RecordCircuitOpen(key string) {
	CircuitOpenTotal.WithLabelValues(key).Inc()
}

// RecordCheck records the duration of a single target check.
func RecordCheck(targetID int64, duration time.Duration) {
	CheckDuration.WithLabelValues(
		fmt.Sprintf("%d", targetID),
	).Observe(duration.Seconds())
}

// RecordChangeDetected records a detected content change for a target.
func RecordChangeDetected(targetID int64) {
	ChangesDetectedTotal.WithLabelValues(
		fmt.Sprintf("%d", targetID),
	).Inc()
}

// RecordCheckError records a failed target check.
// ErrorKind should describe the failure class (e.g. "timeout", "network").
func RecordCheckError(targetID int64, errorKind string) {
	CheckErrorsTotal.WithLabelValues(
		fmt.Sprintf("%d", targetID),
		errorKind,
	).Inc()
}

// UpdateTargetsActive updates the count of active watch targets.
// This gauge should be updated at the start of each check cycle.
func UpdateTargetsActive(count int) {
	TargetsActive.Set(float64(count))
}

// RecordNotification records a notification delivery attempt.
// Status should be either "success" or "failure".
func RecordNotification(channel string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	NotificationsSentTotal.WithLabelValues(channel, status).Inc()
	NotificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_targets", "update_target_hash").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
