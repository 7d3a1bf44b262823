// Package fetcher provides the resilient fetch pipeline used for every
// outbound page retrieval.
package fetcher

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pagewatch/internal/fault"
	"pagewatch/internal/observability/metrics"
	"pagewatch/internal/resilience/cache"
	"pagewatch/internal/resilience/dedup"
	"pagewatch/internal/resilience/retry"
)

// Result is the outcome of a successful fetch.
type Result struct {
	// Body is the raw response body.
	Body string

	// FinalURL is the URL that actually served the response, after redirects.
	FinalURL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// FetchedAt is when the response was received.
	FetchedAt time.Time
}

// Pipeline composes the content cache, in-flight request deduplication, and
// the retry policy around plain HTTP GETs:
//
//  1. The URL is validated for security (SSRF prevention)
//  2. The content cache is consulted; fresh hits return immediately,
//     stale hits are served once while a background refresh runs
//  3. Concurrent fetches for the same URL coalesce into one request
//  4. The request is attempted up to MaxRetries times with backoff,
//     each attempt under its own timeout and a randomly chosen User-Agent
//  5. Successful responses are cached for CacheTTL
//
// Circuit breaking and per-host politeness live one level above, in the
// watch service; the pipeline stays usable for one-off fetches.
//
// Thread safety: Pipeline is safe for concurrent use.
type Pipeline struct {
	client *http.Client
	cache  *cache.Cache[Result]
	dedup  *dedup.Deduplicator[Result]
	config Config
	retry  retry.Config
}

// New creates a Pipeline with the given configuration.
//
// The underlying HTTP client enforces TLS 1.2+, bounds redirects, and
// validates every redirect target for SSRF before following it.
func New(config Config) *Pipeline {
	p := &Pipeline{
		config: config,
		retry: retry.Config{
			MaxRetries: config.MaxRetries,
			BaseDelay:  config.BaseDelay,
		},
		cache: cache.New[Result](cache.Config{
			TTL:                  config.CacheTTL,
			MaxSize:              config.CacheMaxSize,
			StaleWhileRevalidate: config.StaleWhileRevalidate,
			CleanupInterval:      time.Minute,
		}),
		dedup: dedup.New[Result](dedup.Config{
			MaxAge:          config.DedupMaxAge,
			CleanupInterval: time.Minute,
		}),
	}

	p.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= p.config.MaxRedirects {
				return fault.Validation(fmt.Sprintf("too many redirects: %d", len(via)))
			}
			// Validate each redirect target for SSRF
			if err := validateURL(req.URL.String(), p.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	return p
}

// Start launches the cache janitor and the dedup sweeper. Both stop when ctx
// is cancelled.
func (p *Pipeline) Start(ctx context.Context) {
	p.cache.StartJanitor(ctx)
	p.dedup.StartSweeper(ctx)
}

// CacheKey returns the cache and dedup key for a URL.
func CacheKey(urlStr string) string {
	sum := sha256.Sum256([]byte(urlStr))
	return hex.EncodeToString(sum[:])
}

// Fetch retrieves the content at urlStr through the full pipeline.
//
// A fresh cache hit never touches the network. A stale hit (with
// stale-while-revalidate enabled) is returned immediately while a refresh
// runs in the background. On a miss, concurrent callers for the same URL
// share a single network fetch.
func (p *Pipeline) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	if err := validateURL(urlStr, p.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	key := CacheKey(urlStr)

	if cached, ok, stale := p.cache.Get(key); ok {
		metrics.RecordCacheHit(stale)
		if stale {
			slog.Debug("serving stale content, revalidating in background",
				slog.String("url", urlStr))
			go p.revalidate(urlStr, key)
		}
		return &cached, nil
	}
	metrics.RecordCacheMiss()

	return p.fetchShared(ctx, urlStr, key)
}

// Invalidate drops any cached content for urlStr and reports whether an
// entry existed.
func (p *Pipeline) Invalidate(urlStr string) bool {
	return p.cache.Delete(CacheKey(urlStr))
}

// CacheStats returns a snapshot of the content cache counters.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// fetchShared runs one network fetch for key, coalescing with any fetch
// already in flight for the same key. The successful result is cached before
// waiters are released.
func (p *Pipeline) fetchShared(ctx context.Context, urlStr, key string) (*Result, error) {
	// The shared operation must outlive any individual caller, so it runs
	// detached from this caller's cancellation.
	opCtx := context.WithoutCancel(ctx)

	ran := false
	result, err := p.dedup.Execute(ctx, key, func() (Result, error) {
		ran = true
		res, err := p.fetchWithRetry(opCtx, urlStr)
		if err != nil {
			return Result{}, err
		}
		p.cache.Set(key, *res)
		return *res, nil
	})
	if err != nil {
		return nil, err
	}
	if !ran {
		metrics.RecordDedupCoalesced()
	}
	return &result, nil
}

// revalidate refreshes an expired cache entry in the background after a
// stale read was served. Failures leave the old entry in place.
func (p *Pipeline) revalidate(urlStr, key string) {
	if _, err := p.fetchShared(context.Background(), urlStr, key); err != nil {
		slog.Warn("background revalidation failed",
			slog.String("url", urlStr),
			slog.Any("error", err))
	}
}

// fetchWithRetry runs attempts under the retry policy and records the
// overall fetch outcome.
func (p *Pipeline) fetchWithRetry(ctx context.Context, urlStr string) (*Result, error) {
	var result *Result
	start := time.Now()

	err := retry.Run(ctx, p.retry, func() error {
		res, err := p.attempt(ctx, urlStr)
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	metrics.RecordFetch(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attempt performs a single HTTP GET under the per-attempt timeout and
// classifies the outcome.
func (p *Pipeline) attempt(ctx context.Context, urlStr string) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fault.Validation(fmt.Sprintf("failed to create request: %v", err))
	}

	// A retry after a 403 may present a different identity.
	req.Header.Set("User-Agent", p.userAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fault.Timeout(
				fmt.Sprintf("request to %s exceeded %v", urlStr, p.config.Timeout), err)
		}
		// Surface redirect validation failures directly
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			err = urlErr.Err
		}
		return nil, fault.Network("HTTP request failed", 0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	// Read response body with size limit to prevent memory exhaustion
	limited := io.LimitReader(resp.Body, p.config.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fault.Network("failed to read response body", resp.StatusCode, err)
	}
	if int64(len(body)) > p.config.MaxBodySize {
		return nil, fault.Validation(fmt.Sprintf(
			"response size exceeds limit of %d bytes", p.config.MaxBodySize))
	}

	finalURL := urlStr
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:       string(body),
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now(),
	}, nil
}

// classifyStatus maps a non-success HTTP status to a typed fault.
func classifyStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		fe := fault.RateLimited(
			fmt.Sprintf("upstream rate limited: %s", resp.Status),
			parseRetryAfter(resp.Header.Get("Retry-After")))
		fe.StatusCode = code
		return fe
	case code >= 500:
		return fault.Network(fmt.Sprintf("server error: %s", resp.Status), code, nil)
	case code >= 400:
		fe := fault.Validation(fmt.Sprintf("client error: %s", resp.Status))
		fe.StatusCode = code
		return fe
	default:
		return fault.Network(fmt.Sprintf("unexpected status: %s", resp.Status), code, nil)
	}
}

// parseRetryAfter interprets a Retry-After header as delay seconds or an
// HTTP date. Unparseable or absent values yield zero.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// userAgent picks a random User-Agent from the configured pool.
func (p *Pipeline) userAgent() string {
	if len(p.config.UserAgents) == 0 {
		return "PageWatchBot/1.0"
	}
	// #nosec G404 -- identity rotation does not need cryptographic randomness.
	return p.config.UserAgents[rand.Intn(len(p.config.UserAgents))]
}
