// Package notifier provides abstraction for sending notifications about
// detected content changes. It defines the Notifier interface which allows
// different notification mechanisms (Discord, Slack, email, etc.) to be used
// interchangeably through dependency injection.
//
// The package includes implementations for Discord and Slack webhooks and a
// no-op notifier for when notifications are disabled.
package notifier

import (
	"context"

	"pagewatch/internal/domain/entity"
)

// Notifier is an interface for sending change notifications.
// Implementations should handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyChange sends a notification about a detected content change.
	// The notification should include the target metadata (name, URL) and
	// a short excerpt of the new content.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - change: The detected change to notify about (must not be nil)
	//
	// Returns:
	//   - error: Non-nil if the notification failed after all retry attempts
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	NotifyChange(ctx context.Context, change *entity.Change) error
}
