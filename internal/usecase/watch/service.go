// Package watch implements the core check cycle: fetch every active target,
// extract the watched content, detect changes against the previously recorded
// hash, and dispatch notifications for anything that changed.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"pagewatch/internal/domain/entity"
	"pagewatch/internal/fault"
	"pagewatch/internal/infra/extract"
	"pagewatch/internal/infra/fetcher"
	"pagewatch/internal/observability/metrics"
	"pagewatch/internal/repository"
	"pagewatch/internal/resilience/breaker"
	"pagewatch/internal/resilience/cache"
	"pagewatch/internal/resilience/ratelimit"
)

const (
	// defaultParallelism bounds concurrent target checks when the caller
	// doesn't configure one.
	defaultParallelism = 4

	// excerptLimit is how much of the extracted content is carried into the
	// change notification.
	excerptLimit = 500
)

// Notifier dispatches a change notification. Satisfied by notify.Service.
type Notifier interface {
	NotifyChange(ctx context.Context, change *entity.Change) error
}

// Service orchestrates one check cycle over all active targets.
//
// Each target passes through, in order:
//  1. the per-host rate limiter (politeness toward origin servers)
//  2. the per-target circuit breaker (an unhealthy target never blocks others)
//  3. the fetch pipeline (cache, deduplication, retry)
//  4. content extraction according to the target's mode
//  5. hash comparison against the previously recorded content
//
// Failures on individual targets are logged and counted but never abort the
// cycle; only context cancellation stops it early.
type Service struct {
	Targets     repository.TargetRepository
	Pipeline    *fetcher.Pipeline
	Breaker     *breaker.Breaker
	HostLimiter *ratelimit.Limiter
	Hashes      *cache.Cache[string]
	Notifier    Notifier
	Parallelism int
}

// NewService creates a watch service with the given collaborators.
//
// Parameters:
//   - targets: Repository for watch target persistence
//   - pipeline: Fetch pipeline used for all outbound page requests
//   - brk: Per-target circuit breaker
//   - hostLimiter: Per-host admission limiter
//   - hashes: Content hash cache used for change detection
//   - notifier: Change notification dispatcher (may be a no-op service)
//   - parallelism: Maximum concurrent target checks (defaults to 4 when <= 0)
//
// Returns:
//   - *Service: Configured watch service
func NewService(
	targets repository.TargetRepository,
	pipeline *fetcher.Pipeline,
	brk *breaker.Breaker,
	hostLimiter *ratelimit.Limiter,
	hashes *cache.Cache[string],
	notifier Notifier,
	parallelism int,
) *Service {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Service{
		Targets:     targets,
		Pipeline:    pipeline,
		Breaker:     brk,
		HostLimiter: hostLimiter,
		Hashes:      hashes,
		Notifier:    notifier,
		Parallelism: parallelism,
	}
}

// CheckStats summarizes one check cycle.
type CheckStats struct {
	Targets  int64         // Active targets considered
	Checked  int64         // Targets checked successfully
	Changed  int64         // Targets whose content changed (including first observations)
	Errors   int64         // Targets that failed (fetch, extract, or comparison)
	Duration time.Duration // Wall time of the whole cycle
}

// CheckAll runs one check cycle over every active target.
//
// Individual target failures are recorded in the stats and logged; the cycle
// continues with the remaining targets. The returned error is non-nil only
// when listing targets fails or the context is canceled.
func (s *Service) CheckAll(ctx context.Context) (*CheckStats, error) {
	start := time.Now()

	targets, err := s.Targets.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active targets: %w", err)
	}

	metrics.UpdateTargetsActive(len(targets))

	stats := &CheckStats{Targets: int64(len(targets))}
	if len(targets) == 0 {
		slog.Info("no active targets to check")
		stats.Duration = time.Since(start)
		return stats, nil
	}

	slog.Info("starting check cycle",
		slog.Int("targets", len(targets)),
		slog.Int("parallelism", s.Parallelism))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.Parallelism)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			changed, err := s.checkTarget(gctx, target)
			if err != nil {
				// Cancellation aborts the cycle; everything else is
				// logged and the cycle moves on.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt64(&stats.Errors, 1)
				metrics.RecordCheckError(target.ID, string(fault.KindOf(err)))
				slog.Warn("target check failed",
					slog.Int64("target_id", target.ID),
					slog.String("url", target.URL),
					slog.String("error_kind", string(fault.KindOf(err))),
					slog.Any("error", err))
				return nil
			}

			atomic.AddInt64(&stats.Checked, 1)
			if changed {
				atomic.AddInt64(&stats.Changed, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stats.Duration = time.Since(start)
		return stats, err
	}

	stats.Duration = time.Since(start)
	slog.Info("check cycle complete",
		slog.Int64("targets", stats.Targets),
		slog.Int64("checked", stats.Checked),
		slog.Int64("changed", stats.Changed),
		slog.Int64("errors", stats.Errors),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// checkTarget runs the full check for one target and reports whether its
// content changed (a first observation counts as a change).
func (s *Service) checkTarget(ctx context.Context, target *entity.Target) (bool, error) {
	checkStart := time.Now()

	var result *fetcher.Result
	err := s.HostLimiter.Execute(target.Host(), func() error {
		return s.Breaker.Do(target.Key(), func() error {
			var ferr error
			result, ferr = s.Pipeline.Fetch(ctx, target.URL)
			return ferr
		})
	})
	if err != nil {
		if fault.IsKind(err, fault.KindRateLimited) {
			metrics.RecordRateLimited("host")
		}
		return false, err
	}

	extractor, err := extract.New(extract.Mode(target.Mode), target.Selector, target.Pattern)
	if err != nil {
		return false, fault.Wrap(fault.KindConfiguration, "build extractor", err)
	}

	content, err := extractor.Extract(result.Body, result.FinalURL)
	if err != nil {
		return false, fault.Wrap(fault.KindValidation, "extract content", err)
	}

	hash := contentHash(content)
	outcome, err := s.compareHash(target, hash)
	if err != nil {
		return false, err
	}

	now := time.Now()

	// 記録はチェックを呼び出したコンテキストのキャンセルに影響されない
	persistCtx := context.WithoutCancel(ctx)
	if err := s.Targets.RecordCheck(persistCtx, target.ID, now, hash); err != nil {
		slog.Warn("failed to persist check result",
			slog.Int64("target_id", target.ID),
			slog.Any("error", err))
	}

	metrics.RecordCheck(target.ID, time.Since(checkStart))

	changed := outcome != cache.OutcomeUnchanged
	if !changed {
		slog.Debug("content unchanged",
			slog.Int64("target_id", target.ID),
			slog.String("url", target.URL))
		return false, nil
	}

	if outcome == cache.OutcomeChanged {
		metrics.RecordChangeDetected(target.ID)
	}

	change := &entity.Change{
		Target:     target,
		Outcome:    changeOutcome(outcome),
		NewHash:    hash,
		OldHash:    target.LastHash,
		Excerpt:    excerpt(content),
		DetectedAt: now,
	}

	slog.Info("change detected",
		slog.Int64("target_id", target.ID),
		slog.String("url", target.URL),
		slog.String("outcome", change.Outcome),
		slog.String("new_hash", shortHash(hash)))

	// Dispatch is asynchronous and never returns an error, but keep the
	// error path in case a different Notifier implementation does.
	if err := s.Notifier.NotifyChange(ctx, change); err != nil {
		slog.Warn("failed to dispatch change notification",
			slog.Int64("target_id", target.ID),
			slog.Any("error", err))
	}

	return true, nil
}

// compareHash runs change detection for the target against the hash cache,
// seeding the cache from the persisted hash so a process restart doesn't
// report every target as newly observed.
func (s *Service) compareHash(target *entity.Target, hash string) (cache.Outcome, error) {
	key := target.Key()

	if _, ok, _ := s.Hashes.Get(key); !ok && target.LastHash != "" {
		s.Hashes.Set(key, target.LastHash)
	}

	outcome, err := s.Hashes.CompareAndSet(key, hash)
	if err != nil {
		return outcome, fault.Wrap(fault.KindValidation, "compare content hash", err)
	}
	return outcome, nil
}

// changeOutcome maps a cache comparison outcome to the change event outcome.
func changeOutcome(outcome cache.Outcome) string {
	if outcome == cache.OutcomeInitial {
		return entity.OutcomeInitial
	}
	return entity.OutcomeChanged
}

// contentHash returns the SHA-256 hex digest of the extracted content.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// excerpt returns the leading portion of content for notification payloads.
func excerpt(content string) string {
	if len(content) <= excerptLimit {
		return content
	}
	return content[:excerptLimit]
}

// shortHash truncates a hash for log output.
func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
