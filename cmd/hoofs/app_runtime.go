package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoofs-app/hoofs/internal/api"
	"github.com/hoofs-app/hoofs/internal/audit"
	"github.com/hoofs-app/hoofs/internal/buildinfo"
	"github.com/hoofs-app/hoofs/internal/config"
	"github.com/hoofs-app/hoofs/internal/dispatch"
	"github.com/hoofs-app/hoofs/internal/engine"
	"github.com/hoofs-app/hoofs/internal/janitor"
	"github.com/hoofs-app/hoofs/internal/metrics"
	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/notify"
	"github.com/hoofs-app/hoofs/internal/ratelimit"
	"github.com/hoofs-app/hoofs/internal/scrape"
	"github.com/hoofs-app/hoofs/internal/seed"
	"github.com/hoofs-app/hoofs/internal/service"
	"github.com/hoofs-app/hoofs/internal/state"
	"github.com/hoofs-app/hoofs/internal/watch"
)

type hoofsApp struct {
	cfg       *config.EnvConfig
	repo      *state.Repo
	auditor   *audit.Writer
	metrics   *metrics.Manager
	scheduler *watch.Scheduler
	worker    *dispatch.Worker
	janitor   *janitor.Janitor
	apiServer *api.Server
}

func run() error {
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	log.Printf("Hoofs %s (commit %s, built %s)", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	if cfg.AdminToken != "" && config.IsWeakToken(cfg.AdminToken) {
		log.Println("[config] HOOFS_ADMIN_TOKEN is weak; generate a longer random token")
	}

	repo, dbCloser, err := state.Bootstrap(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("state bootstrap: %w", err)
	}
	log.Println("State bootstrap complete")

	app, err := newHoofsApp(cfg, repo)
	if err != nil {
		_ = dbCloser.Close()
		return err
	}

	if cfg.SeedFile != "" {
		if err := app.applySeed(cfg.SeedFile); err != nil {
			_ = dbCloser.Close()
			return err
		}
	}

	app.startWorkers()
	serverErrCh := app.startAPIServer()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx)

	if err := dbCloser.Close(); err != nil {
		log.Printf("State close error: %v", err)
	}
	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func newHoofsApp(cfg *config.EnvConfig, repo *state.Repo) (*hoofsApp, error) {
	debug := cfg.LogLevel == "debug"

	fetcher, err := scrape.NewHTTPFetcher(cfg.ScrapeTimeout, cfg.ScrapeProxyURL)
	if err != nil {
		return nil, fmt.Errorf("scrape fetcher: %w", err)
	}
	scraper := scrape.New(scrape.Options{
		Fetcher:   fetcher,
		EventURL:  cfg.EventURL,
		CacheSize: cfg.PageCacheSize,
		CacheTTL:  cfg.PageCacheTTL,
		Debug:     debug,
	})
	limiter := ratelimit.New(cfg.MinScrapeInterval, cfg.MaxScrapesPerMinute, time.Minute)

	eng := engine.New()
	mgr := metrics.NewManager(repo, cfg.MetricBucketSeconds)
	auditor := audit.NewWriter(repo, audit.Options{
		QueueSize:     cfg.AuditQueueSize,
		FlushBatch:    cfg.AuditFlushBatchSize,
		FlushInterval: cfg.AuditFlushInterval,
		Debug:         debug,
	})

	push := notify.NewPush(notify.PushOptions{
		AppID:    cfg.PushAppID,
		APIKey:   cfg.PushAPIKey,
		APIURL:   cfg.PushAPIURL,
		EventURL: cfg.EventURL,
		Timeout:  cfg.NotifyTimeout,
	})
	email := notify.NewEmail(notify.EmailOptions{
		APIKey:   cfg.EmailAPIKey,
		From:     cfg.EmailFrom,
		APIURL:   cfg.EmailAPIURL,
		EventURL: cfg.EventURL,
		Timeout:  cfg.NotifyTimeout,
	})

	planner := dispatch.NewPlanner(repo, func(plan model.Plan) time.Duration {
		return cfg.PlanDelay(string(plan))
	})
	scheduler := watch.NewScheduler(watch.SchedulerConfig{
		Repo:          repo,
		Scraper:       scraper,
		Limiter:       limiter,
		Planner:       planner,
		Checks:        auditor,
		Engine:        eng,
		Metrics:       mgr,
		CheckInterval: cfg.CheckInterval,
		EventPause:    cfg.EventPause,
		Debug:         debug,
	})
	worker := dispatch.NewWorker(dispatch.WorkerConfig{
		Repo:       repo,
		Adapters:   []notify.Adapter{push, email},
		Engine:     eng,
		Metrics:    mgr,
		Interval:   cfg.DispatchInterval,
		BatchLimit: cfg.DispatchBatchLimit,
		ClaimTTL:   cfg.ClaimTTL,
		Debug:      debug,
	})
	jan := janitor.New(repo, janitor.Config{
		Schedule:       cfg.RetentionSchedule,
		CheckRetention: time.Duration(cfg.CheckRetentionDays) * 24 * time.Hour,
		LogRetention:   time.Duration(cfg.LogRetentionDays) * 24 * time.Hour,
		Debug:          debug,
	})

	svc := &service.AdminService{
		Repo:    repo,
		Engine:  eng,
		Metrics: mgr,
		Checker: scheduler,
		Push:    push,
		Email:   email,
	}
	apiServer := api.NewServerWithAddress(cfg.ListenAddress, cfg.Port, cfg.AdminToken, svc, int64(cfg.APIMaxBodyBytes))

	return &hoofsApp{
		cfg:       cfg,
		repo:      repo,
		auditor:   auditor,
		metrics:   mgr,
		scheduler: scheduler,
		worker:    worker,
		janitor:   jan,
		apiServer: apiServer,
	}, nil
}

func (a *hoofsApp) applySeed(path string) error {
	wl, err := seed.Load(path)
	if err != nil {
		return err
	}
	if err := wl.Apply(a.repo); err != nil {
		return err
	}
	log.Printf("Seed watchlist applied: %d events, %d users, %d subscriptions",
		len(wl.Events), len(wl.Users), len(wl.Subscriptions))
	return nil
}

func (a *hoofsApp) startWorkers() {
	a.auditor.Start()
	log.Println("Check auditor started")

	a.metrics.Start()
	log.Println("Metrics manager started")

	a.scheduler.Start()
	log.Println("Watch scheduler started")

	a.worker.Start()
	log.Println("Dispatch worker started")

	a.janitor.Start()
	log.Println("Retention janitor started")
}

func (a *hoofsApp) startAPIServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Hoofs API server starting on %s:%d", a.cfg.ListenAddress, a.cfg.Port)
		if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
		return err
	}
}

// shutdown stops sources before sinks: no new polls or deliveries first,
// then flush what the sinks still hold, then stop serving requests.
func (a *hoofsApp) shutdown(ctx context.Context) {
	a.scheduler.Stop()
	log.Println("Watch scheduler stopped")

	a.worker.Stop()
	log.Println("Dispatch worker stopped")

	a.janitor.Stop()
	log.Println("Retention janitor stopped")

	a.metrics.Stop()
	log.Println("Metrics manager stopped")

	a.auditor.Stop()
	log.Println("Check auditor stopped")

	if err := a.apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Hoofs server stopped")
}
