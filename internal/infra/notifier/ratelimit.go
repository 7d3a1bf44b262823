package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing webhook calls with a token bucket so that a
// burst of change notifications does not trip Discord's or Slack's own
// rate limits.
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter with the given sustained rate and
// burst capacity. Up to burst calls pass immediately, after which tokens
// refill at requestsPerSecond.
//
// Parameters:
//   - requestsPerSecond: Maximum sustained call rate (e.g., 2.0)
//   - burst: Calls allowed in a burst before pacing kicks in (e.g., 5)
//
// Example:
//
//	limiter := NewRateLimiter(2.0, 5) // 2 calls/s with burst of 5
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	r := rate.Limit(requestsPerSecond)
	l := rate.NewLimiter(r, burst)

	return &RateLimiter{
		rate:    r,
		burst:   burst,
		limiter: l,
	}
}

// Allow blocks until a token is available or the context is canceled.
// Call it before each webhook request.
//
// Returns:
//   - error: Non-nil if the context was canceled or its deadline exceeded
//
// Example:
//
//	if err := limiter.Allow(ctx); err != nil {
//	    return fmt.Errorf("rate limit error: %w", err)
//	}
//	// Proceed with the webhook call
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
