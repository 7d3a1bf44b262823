package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the fetch pipeline.
// This configuration controls security, caching, and retry behavior of
// every outbound page fetch.
//
// Security settings:
//   - DenyPrivateIPs: Prevents SSRF attacks by blocking private IP addresses
//   - MaxBodySize: Prevents memory exhaustion from oversized responses
//   - MaxRedirects: Prevents infinite redirect loops
//   - Timeout: Prevents resource starvation from slow servers
//
// Resilience settings:
//   - CacheTTL / CacheMaxSize / StaleWhileRevalidate: Content cache behavior
//   - MaxRetries / BaseDelay: Retry policy for failed attempts
//   - DedupMaxAge: How long an in-flight entry may coalesce callers
type Config struct {
	// Timeout is the maximum duration for a single HTTP attempt.
	// Retries get a fresh timeout each.
	// Default: 10s
	Timeout time.Duration

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// Responses exceeding this limit are rejected to prevent memory exhaustion.
	// This is enforced during response reading, not based on Content-Length header.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	// Each redirect target is validated for security (SSRF check).
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs controls whether to block access to private IP addresses.
	// When true, URLs resolving to private/loopback/link-local IPs are rejected.
	// Should always be true in production.
	// Default: true
	DenyPrivateIPs bool

	// UserAgents is the pool of User-Agent strings. Each attempt picks one
	// at random, so a retry after a 403 may present a different identity.
	UserAgents []string

	// MaxRetries is the total number of attempts per fetch, including the first.
	// Default: 3
	MaxRetries int

	// BaseDelay is the delay before the first retry. Subsequent delays
	// double per attempt with jitter.
	// Default: 500ms
	BaseDelay time.Duration

	// CacheTTL is how long fetched content stays fresh in the cache.
	// Default: 5m
	CacheTTL time.Duration

	// CacheMaxSize is the maximum number of cached responses before
	// least-recently-used entries are evicted.
	// Default: 1000
	CacheMaxSize int

	// StaleWhileRevalidate allows one caller to receive an expired entry
	// while a fresh fetch runs in the background.
	// Default: true
	StaleWhileRevalidate bool

	// DedupMaxAge bounds how long an in-flight fetch entry may coalesce
	// new callers before being swept. Must comfortably exceed the worst
	// case fetch duration (all retries plus backoff).
	// Default: 5m
	DedupMaxAge time.Duration
}

// DefaultConfig returns the default configuration for the fetch pipeline.
// These defaults are optimized for:
//   - Security: SSRF prevention enabled, size/redirect limits enforced
//   - Politeness: cached content is reused for 5 minutes
//   - Resilience: 3 attempts with short backoff per fetch
func DefaultConfig() Config {
	return Config{
		Timeout:              10 * time.Second,
		MaxBodySize:          10 * 1024 * 1024, // 10MB
		MaxRedirects:         5,
		DenyPrivateIPs:       true,
		UserAgents:           []string{"PageWatchBot/1.0"},
		MaxRetries:           3,
		BaseDelay:            500 * time.Millisecond,
		CacheTTL:             5 * time.Minute,
		CacheMaxSize:         1000,
		StaleWhileRevalidate: true,
		DedupMaxAge:          5 * time.Minute,
	}
}

// Validate checks if the configuration values are valid and safe.
// This prevents misconfigurations that could lead to security issues
// or performance problems.
//
// Validation rules:
//   - Timeout: > 0 (must have timeout)
//   - MaxBodySize: 1KB-100MB (prevent memory issues)
//   - MaxRedirects: 0-10 (reasonable redirect limit)
//   - UserAgents: at least one entry
//   - MaxRetries: 1-10
//   - BaseDelay: > 0
//   - CacheTTL: > 0
//   - CacheMaxSize: 1-100000
//   - DedupMaxAge: must exceed the worst-case attempt budget
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	if len(c.UserAgents) == 0 {
		return fmt.Errorf("at least one user agent is required")
	}

	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 1 and 10, got %d", c.MaxRetries)
	}

	if c.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %v", c.BaseDelay)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.CacheTTL)
	}

	if c.CacheMaxSize < 1 || c.CacheMaxSize > 100000 {
		return fmt.Errorf("cache max size must be between 1 and 100000, got %d", c.CacheMaxSize)
	}

	// Worst case for one fetch: every attempt times out and every backoff
	// delay is taken in full. A dedup entry must outlive that.
	worst := time.Duration(c.MaxRetries)*c.Timeout + (c.BaseDelay << uint(c.MaxRetries))
	if c.DedupMaxAge <= worst {
		return fmt.Errorf("dedup max age %v must exceed worst-case fetch duration %v", c.DedupMaxAge, worst)
	}

	return nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// If a variable is not set, the default value is used. After loading,
// the configuration is validated.
//
// Environment variables:
//   - FETCH_TIMEOUT: duration string, e.g., "10s" (default: 10s)
//   - FETCH_MAX_BODY_SIZE: integer in bytes (default: 10485760)
//   - FETCH_MAX_REDIRECTS: integer (default: 5)
//   - FETCH_DENY_PRIVATE_IPS: "true" or "false" (default: true)
//   - FETCH_USER_AGENTS: comma-separated list (default: PageWatchBot/1.0)
//   - FETCH_MAX_RETRIES: integer (default: 3)
//   - FETCH_BASE_DELAY: duration string (default: 500ms)
//   - FETCH_CACHE_TTL: duration string (default: 5m)
//   - FETCH_CACHE_MAX_SIZE: integer (default: 1000)
//   - FETCH_STALE_WHILE_REVALIDATE: "true" or "false" (default: true)
//   - FETCH_DEDUP_MAX_AGE: duration string (default: 5m)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("FETCH_TIMEOUT"); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_TIMEOUT: %v (expected format: '10s', '1m')", err)
		}
		cfg.Timeout = parsed
	}

	if val := os.Getenv("FETCH_MAX_BODY_SIZE"); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_MAX_BODY_SIZE: %v", err)
		}
		cfg.MaxBodySize = parsed
	}

	if val := os.Getenv("FETCH_MAX_REDIRECTS"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_MAX_REDIRECTS: %v", err)
		}
		cfg.MaxRedirects = parsed
	}

	if val := os.Getenv("FETCH_DENY_PRIVATE_IPS"); val != "" {
		cfg.DenyPrivateIPs = val == "true"
	}

	if val := os.Getenv("FETCH_USER_AGENTS"); val != "" {
		var agents []string
		for _, agent := range strings.Split(val, ",") {
			if trimmed := strings.TrimSpace(agent); trimmed != "" {
				agents = append(agents, trimmed)
			}
		}
		cfg.UserAgents = agents
	}

	if val := os.Getenv("FETCH_MAX_RETRIES"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_MAX_RETRIES: %v", err)
		}
		cfg.MaxRetries = parsed
	}

	if val := os.Getenv("FETCH_BASE_DELAY"); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_BASE_DELAY: %v", err)
		}
		cfg.BaseDelay = parsed
	}

	if val := os.Getenv("FETCH_CACHE_TTL"); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_CACHE_TTL: %v", err)
		}
		cfg.CacheTTL = parsed
	}

	if val := os.Getenv("FETCH_CACHE_MAX_SIZE"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_CACHE_MAX_SIZE: %v", err)
		}
		cfg.CacheMaxSize = parsed
	}

	if val := os.Getenv("FETCH_STALE_WHILE_REVALIDATE"); val != "" {
		cfg.StaleWhileRevalidate = val == "true"
	}

	if val := os.Getenv("FETCH_DEDUP_MAX_AGE"); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_DEDUP_MAX_AGE: %v", err)
		}
		cfg.DedupMaxAge = parsed
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
