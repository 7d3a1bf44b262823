// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Fetch pipeline metrics (cache hits/misses, dedup, attempts, duration)
//   - Watcher metrics (check duration, changes detected, errors)
//   - Notification delivery metrics
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "pagewatch/internal/observability/metrics"
//
//	func checkTarget(targetID int64) {
//	    start := time.Now()
//	    // ... check target ...
//
//	    metrics.RecordCheck(targetID, time.Since(start))
//	}
package metrics
