// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Check cycle tagging for worker runs
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "pagewatch/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started", slog.String("version", "1.0"))
//	}
//
//	func runCycle(ctx context.Context, cycleID string) {
//	    logger := logging.WithCycle(slog.Default(), cycleID)
//	    logger.Info("starting check cycle")
//	}
package logging
