package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"

	"xdownloader/internal/adapters/cache"
	"xdownloader/internal/adapters/listing"
	"xdownloader/internal/adapters/payload"
	"xdownloader/internal/adapters/upstream"
	"xdownloader/internal/adapters/web"
	"xdownloader/internal/config"
	"xdownloader/internal/domain"
	"xdownloader/internal/scheduler"
	"xdownloader/internal/usecases"
	"xdownloader/pkg/log"
	"xdownloader/pkg/log/transporters"
	"xdownloader/templates/pages"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.GlobalError("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	defer logger.Close()

	if err := run(cfg); err != nil {
		logger.Error("server stopped", "error", err)
		logger.Close()
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) *log.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.Info
	}
	var transporter log.Transporter = transporters.NewStdout()
	if strings.EqualFold(cfg.Format, "text") {
		transporter = transporters.NewText()
	}
	logger := log.New(level, transporter)
	log.SetDefault(logger)
	return logger
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Default().Named("main")

	// Upstream transport: plain HTTP, or Chrome for upstreams behind a challenge.
	var doer upstream.Doer = &http.Client{}
	if cfg.Upstream.Transport == "browser" {
		pool, err := upstream.NewBrowserPool(upstream.BrowserConfig{
			ExecPath:  cfg.Upstream.ChromePath,
			RemoteURL: cfg.Upstream.ChromeRemoteURL,
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		doer = pool
	}

	policy := upstream.RetryPolicy{
		MaxRetries:     cfg.Upstream.MaxRetries,
		MinDelay:       cfg.Upstream.RetryMinDelay,
		MaxDelay:       cfg.Upstream.RetryMaxDelay,
		AttemptTimeout: cfg.Upstream.AttemptTimeout,
		RetryRejected:  cfg.Upstream.RetryRejected,
	}
	client := upstream.NewClient(cfg.Upstream.LookupURL, doer, policy)

	var quotaReader usecases.QuotaReader
	if cfg.Upstream.QuotaURL != "" {
		quotaReader = upstream.NewQuotaClient(cfg.Upstream.QuotaURL, doer, cfg.Upstream.AttemptTimeout)
	}
	quota := usecases.NewQuotaTracker(quotaReader)
	tracker := usecases.NewRequestTracker()
	fetchUC := usecases.NewFetchTweetUseCase(client, payload.NewNormalizer(), tracker, quota)

	sched := scheduler.New(time.Minute)
	if err := sched.AddJob(scheduler.JobPruneSessions, cfg.Session.PruneSchedule,
		scheduler.PruneSessionsJob(tracker, cfg.Session.IdleTimeout)); err != nil {
		return err
	}
	if quotaReader != nil && cfg.Upstream.QuotaRefresh != "" {
		if err := sched.AddJob(scheduler.JobRefreshQuota, cfg.Upstream.QuotaRefresh, scheduler.RefreshQuotaJob(quota)); err != nil {
			return err
		}
	}

	limiter := web.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Close()

	deps := web.Dependencies{
		Fetch:        fetchUC,
		Quota:        quota,
		Lookup:       client,
		Limiter:      limiter,
		Timeout:      cfg.Server.HandlerTimeout,
		ListingLimit: cfg.Listing.Limit,
		Health:       map[string]web.HealthChecker{},
	}

	if cfg.Listing.Enabled {
		closeListing, err := setupListing(ctx, cfg.Listing, sched, &deps)
		if err != nil {
			return err
		}
		defer closeListing()
	}

	sched.Start()
	defer func() { <-sched.Stop().Done() }()
	for _, job := range sched.ListJobs() {
		logger.Debug("job scheduled", "job", job.Name, "schedule", job.Schedule, "next_run", job.NextRun)
	}
	if quotaReader != nil {
		go func() { _ = sched.RunNow(scheduler.JobRefreshQuota, scheduler.RefreshQuotaJob(quota)) }()
	}
	if deps.Listings != nil {
		go func() {
			_ = sched.RunNow(scheduler.JobWarmListings, scheduler.WarmListingsJob(deps.Listings, cfg.Listing.Limit))
		}()
	}

	pages.AppName = cfg.Server.AppName
	app := fiber.New(fiber.Config{
		AppName:               cfg.Server.AppName,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New(web.RequestIDConfig()))
	app.Use(web.RequestIDToContextMiddleware())
	app.Use(web.SessionMiddleware(false))
	app.Use(web.RequestLoggerMiddleware())

	web.SetupRoutes(app, web.NewHandlers(deps), cfg.Server.StaticDir)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Address(), "transport", cfg.Upstream.Transport, "listing", cfg.Listing.Enabled, "log_level", logger.Level().String())
		errCh <- app.Listen(cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// setupListing wires the listing API, the database fallback, the hidden
// filter and the cache, and registers their jobs.
func setupListing(ctx context.Context, cfg config.ListingConfig, sched *scheduler.Scheduler, deps *web.Dependencies) (func(), error) {
	logger := log.Default().Named("listing")
	httpClient := &http.Client{}

	var primary, fallback usecases.Lister
	if cfg.RemoteURL != "" {
		remote := listing.NewRemoteLister(cfg.RemoteURL, httpClient, 10*time.Second)
		primary = remote
		deps.ListingAPI = remote
	}

	closer := func() {}
	if cfg.DatabaseURL != "" {
		store, err := listing.OpenSQLStore(ctx, cfg.DatabaseURL, cfg.Window)
		if err != nil {
			if primary == nil {
				return nil, err
			}
			logger.Warn("listing database unavailable, using the API only", "error", err)
		} else {
			fallback = store
			deps.Health["database"] = store
			closer = func() {
				if err := store.Close(); err != nil {
					logger.Warn("close listing database", "error", err)
				}
			}
		}
	}

	var filter usecases.ListingFilter
	if cfg.HiddenFile != "" {
		hidden, err := listing.LoadHiddenFilter(cfg.HiddenFile)
		if err != nil {
			closer()
			return nil, err
		}
		filter = hidden
		if err := sched.AddJob(scheduler.JobReloadHidden, "@every 1m", scheduler.ReloadHiddenJob(hidden)); err != nil {
			closer()
			return nil, err
		}
	}

	listingCache := cache.NewMemoryCache[domain.Listing](cfg.CacheTTL)
	listUC := usecases.NewListTweetsUseCase(primary, fallback, filter, listingCache)
	deps.Listings = listUC

	if cfg.RefreshSchedule != "" {
		if err := sched.AddJob(scheduler.JobWarmListings, cfg.RefreshSchedule, scheduler.WarmListingsJob(listUC, cfg.Limit)); err != nil {
			closer()
			return nil, err
		}
	}
	if err := sched.AddJob(scheduler.JobPurgeCache, "@every 10m", scheduler.PurgeCacheJob(listingCache)); err != nil {
		closer()
		return nil, err
	}
	return closer, nil
}
