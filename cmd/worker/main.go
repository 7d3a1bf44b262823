package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	pgRepo "pagewatch/internal/infra/adapter/persistence/postgres"
	"pagewatch/internal/infra/db"
	"pagewatch/internal/infra/fetcher"
	"pagewatch/internal/infra/notifier"
	workerPkg "pagewatch/internal/infra/worker"
	"pagewatch/internal/observability/slo"
	"pagewatch/internal/resilience/breaker"
	"pagewatch/internal/resilience/cache"
	"pagewatch/internal/resilience/circuitbreaker"
	"pagewatch/internal/resilience/ratelimit"
	"pagewatch/internal/usecase/notify"
	"pagewatch/internal/usecase/watch"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM targets LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Report connection pool stats alongside the other worker metrics
	db.StartPoolStatsReporter(ctx, database, 30*time.Second)

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("notify_max_concurrent", workerConfig.NotifyMaxConcurrent),
		slog.Int("check_parallelism", workerConfig.CheckParallelism),
		slog.Duration("check_timeout", workerConfig.CheckTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	// Initialize Discord notification channel
	discordConfig := loadDiscordConfig(logger)
	var discordChannel notify.Channel
	if discordConfig.Enabled {
		discordChannel = notify.NewDiscordChannel(discordConfig)
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	// Initialize Slack notification channel
	slackConfig := loadSlackConfig(logger)
	var slackChannel notify.Channel
	if slackConfig.Enabled {
		slackChannel = notify.NewSlackChannel(slackConfig)
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	// Initialize notification service (use workerConfig)
	var channels []notify.Channel
	if discordChannel != nil {
		channels = append(channels, discordChannel)
	}
	if slackChannel != nil {
		channels = append(channels, slackChannel)
	}

	notifyService := notify.NewService(channels, workerConfig.NotifyMaxConcurrent)
	logger.Info("Notification service initialized",
		slog.Int("channels", len(channels)),
		slog.Int("max_concurrent", workerConfig.NotifyMaxConcurrent))

	// Start metrics HTTP server
	startMetricsServer(ctx, logger, notifyService)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	svc, pipeline := setupWatchService(ctx, logger, database, notifyService, workerConfig)

	// Expose channel health and fetch cache stats on /health/status
	healthServer.SetStatusSource(func() interface{} {
		return map[string]interface{}{
			"channels": notifyService.GetChannelHealth(),
			"cache":    pipeline.CacheStats(),
		}
	})

	startCronWorker(logger, svc, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// setupWatchService creates and configures the watch service with all dependencies.
// It returns the service along with the fetch pipeline so the caller can expose
// cache statistics on the health endpoint.
func setupWatchService(ctx context.Context, logger *slog.Logger, database *sql.DB, notifyService notify.Service, workerConfig *workerPkg.WorkerConfig) (*watch.Service, *fetcher.Pipeline) {
	// Repository sits behind the DB circuit breaker so a dead database fails
	// fast instead of stalling every check cycle on connection timeouts
	targetRepo := pgRepo.NewTargetRepo(circuitbreaker.NewDBCircuitBreaker(database))

	// Load fetch pipeline configuration from environment
	fetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load fetch configuration, using defaults",
			slog.Any("error", err))
		fetchConfig = fetcher.DefaultConfig()
	}

	pipeline := fetcher.New(fetchConfig)
	pipeline.Start(ctx)
	logger.Info("Fetch pipeline initialized",
		slog.Duration("timeout", fetchConfig.Timeout),
		slog.Int("max_retries", fetchConfig.MaxRetries),
		slog.Duration("cache_ttl", fetchConfig.CacheTTL),
		slog.Bool("deny_private_ips", fetchConfig.DenyPrivateIPs))

	// Per-target circuit breaker so one flapping page cannot burn the cycle
	brk := breaker.New(breaker.DefaultConfig())

	// Per-host admission limiter shared across all targets on the same host
	hostLimiter := ratelimit.New(loadHostLimitConfig(logger))

	// Content hash cache used for change detection. Entries missing from the
	// cache are seeded from the persisted hash, so a generous TTL only saves
	// the occasional repository read after quiet periods.
	hashes := cache.New[string](cache.Config{
		TTL:             24 * time.Hour,
		MaxSize:         10000,
		CleanupInterval: 10 * time.Minute,
	})
	hashes.StartJanitor(ctx)

	service := watch.NewService(
		targetRepo,
		pipeline,
		brk,
		hostLimiter,
		hashes,
		notifyService,
		workerConfig.CheckParallelism,
	)

	return service, pipeline
}

// loadHostLimitConfig builds the per-host rate limit configuration.
//
// Environment variables:
//   - HOST_MAX_REQUESTS_PER_MINUTE: Integer > 0 (default: 30)
func loadHostLimitConfig(logger *slog.Logger) ratelimit.Config {
	cfg := ratelimit.DefaultConfig()

	if val := os.Getenv("HOST_MAX_REQUESTS_PER_MINUTE"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed <= 0 {
			logger.Warn("Invalid HOST_MAX_REQUESTS_PER_MINUTE, using default",
				slog.String("value", val),
				slog.Int("default", cfg.MaxRequests))
		} else {
			cfg.MaxRequests = parsed
		}
	}

	return cfg
}

// loadDiscordConfig loads Discord configuration from environment variables.
//
// Environment variables:
//   - DISCORD_ENABLED: Boolean flag to enable Discord notifications (default: false)
//   - DISCORD_WEBHOOK_URL: Discord webhook URL (required if enabled)
//
// Returns:
//   - notifier.DiscordConfig: Configuration with validation applied
func loadDiscordConfig(logger *slog.Logger) notifier.DiscordConfig {
	enabled := os.Getenv("DISCORD_ENABLED") == "true"
	webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")

	if !enabled {
		return notifier.DiscordConfig{Enabled: false}
	}

	// Validate webhook URL format
	if webhookURL == "" {
		logger.Warn("Discord webhook URL is empty, disabling notifications")
		return notifier.DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Discord webhook URL format, disabling notifications", slog.Any("error", err))
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Discord webhook URL must use HTTPS, disabling notifications")
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Host != "discord.com" {
		logger.Warn("Invalid Discord webhook host, disabling notifications", slog.String("host", u.Host))
		return notifier.DiscordConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("Invalid Discord webhook path, disabling notifications", slog.String("path", u.Path))
		return notifier.DiscordConfig{Enabled: false}
	}

	return notifier.DiscordConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// loadSlackConfig loads Slack configuration from environment variables.
//
// Environment variables:
//   - SLACK_ENABLED: Boolean flag to enable Slack notifications (default: false)
//   - SLACK_WEBHOOK_URL: Slack webhook URL (required if enabled)
//
// Returns:
//   - notifier.SlackConfig: Configuration with validation applied
func loadSlackConfig(logger *slog.Logger) notifier.SlackConfig {
	enabled := os.Getenv("SLACK_ENABLED") == "true"
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")

	if !enabled {
		return notifier.SlackConfig{Enabled: false}
	}

	// Validate webhook URL format
	if webhookURL == "" {
		logger.Warn("Slack webhook URL is empty, disabling notifications")
		return notifier.SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Slack webhook URL format, disabling notifications", slog.Any("error", err))
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Slack webhook URL must use HTTPS, disabling notifications")
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Host != "hooks.slack.com" {
		logger.Warn("Invalid Slack webhook host, disabling notifications", slog.String("host", u.Host))
		return notifier.SlackConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("Invalid Slack webhook path, disabling notifications", slog.String("path", u.Path))
		return notifier.SlackConfig{Enabled: false}
	}

	return notifier.SlackConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// startCronWorker starts the cron scheduler and runs the check job periodically.
func startCronWorker(logger *slog.Logger, svc *watch.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runCheckJob(logger, svc, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runCheckJob executes a single check cycle with timeout and error handling.
func runCheckJob(logger *slog.Logger, svc *watch.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("check cycle started")

	// チェック処理のタイムアウト（設定から取得）
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CheckTimeout)
	defer cancel()

	stats, err := svc.CheckAll(ctx)
	if err != nil {
		logger.Error("check cycle failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		return
	}

	// Record metrics
	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordTargetsChecked(int(stats.Checked))
	metrics.RecordLastSuccess()

	// Record SLO gauges for the cycle
	if total := stats.Checked + stats.Errors; total > 0 {
		slo.UpdateCheckSuccess(float64(stats.Checked) / float64(total))
	}
	slo.UpdateCycleDuration(stats.Duration.Seconds())

	logger.Info("check cycle completed",
		slog.Int64("targets", stats.Targets),
		slog.Int64("checked", stats.Checked),
		slog.Int64("changed", stats.Changed),
		slog.Int64("errors", stats.Errors),
		slog.Duration("duration", stats.Duration),
	)
}
