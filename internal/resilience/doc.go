// Package resilience groups the reliability patterns the watcher composes
// around remote page fetches and shared infrastructure.
//
// Subpackages:
//   - cache: TTL + LRU bounded store with stale-while-revalidate and
//     CompareAndSet change detection
//   - breaker: per-key circuit breaker isolating individual watch targets
//   - circuitbreaker: gobreaker-based wrappers for shared dependencies
//     (database, notification webhooks)
//   - dedup: in-flight request coalescing keyed by URL
//   - ratelimit: fixed-window per-key admission limiter
//   - retry: exponential backoff with bounded jitter
//
// Usage Example:
//
//	brk := breaker.New(breaker.DefaultConfig())
//	err := brk.Do(target.Key(), func() error {
//	    return checkTarget(ctx, target)
//	})
//
//	err = retry.Run(ctx, retry.FetchConfig(), func() error {
//	    return performFetch()
//	})
package resilience
