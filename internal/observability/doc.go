// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and SLO tracking.
//
// This package centralizes observability concerns to enable:
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - SLO tracking for check cycle reliability
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - slo: Service level objective gauges for the check worker
//
// Example usage:
//
//	import (
//	    "pagewatch/internal/observability/logging"
//	    "pagewatch/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordChangeDetected(42)
//	}
package observability
