package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"KiddoNews/internal/api"
	"KiddoNews/internal/config"
	"KiddoNews/internal/infrastructure/browser"
	"KiddoNews/internal/infrastructure/llm"
	"KiddoNews/internal/infrastructure/ml"
	"KiddoNews/internal/infrastructure/parser"
	"KiddoNews/internal/infrastructure/scheduler"
	"KiddoNews/internal/infrastructure/storage"
	"KiddoNews/internal/infrastructure/telegram"
	"KiddoNews/internal/logging"
	"KiddoNews/internal/metrics"
	"KiddoNews/internal/ports"
	"KiddoNews/internal/textnorm"
	"KiddoNews/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and owns the lifecycle of shared handles.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db       *sql.DB
	browser  ports.Browser
	store    ports.ArticleStore
	registry *prometheus.Registry

	orchestrator *usecase.Orchestrator
	filter       *usecase.FilterRunner
	review       *usecase.ReviewService
}

// New builds the application. The browser allocator is bound to ctx.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, registry: prometheus.NewRegistry()}

	if cfg.Database.InMemory() {
		baseLogger.Warn("using in-memory article store, nothing survives a restart")
		a.store = storage.NewMemoryRepository()
	} else {
		db, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.store = storage.NewPostgresRepository(db)
	}

	switch cfg.Browser.Engine {
	case config.EngineHTTP:
		a.browser = browser.NewHTTPBrowser(nil, cfg.Crawl.NavigationTimeout)
	default:
		a.browser = browser.NewChromeBrowser(ctx, browser.ChromeOptions{
			Headless:          cfg.Browser.Headless,
			ExecPath:          cfg.Browser.ExecPath,
			NavigationTimeout: cfg.Crawl.NavigationTimeout,
		})
	}

	adapters, err := parser.NewRegistry(cfg.Sites, parser.Deps{
		Browser:    a.browser,
		Normalizer: textnorm.New(baseLogger.With("component", "textnorm"), cfg.Crawl.Location()),
		Logger:     baseLogger.With("component", "scanner"),
		UserAgent:  cfg.Crawl.UserAgent,
		Headers:    cfg.Crawl.Headers,
		AdKeywords: cfg.Crawl.AdKeywords,
		Interval:   cfg.Crawl.PolitenessInterval,

		NavigationTimeout: cfg.Crawl.NavigationTimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(a.registry)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	var summarizer ports.Summarizer
	switch cfg.SummarizerEngine() {
	case config.SummarizerChatGPT:
		summarizer = llm.NewChatGPTClient(cfg.ChatGPT)
	case config.SummarizerML:
		summarizer = ml.NewClient(cfg.ML)
	default:
		summarizer = llm.StubSummarizer{}
		baseLogger.Info("stub summarizer, summaries are excerpts")
	}

	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Registry: adapters,
		Store:    a.store,
		Notifier: notifier,
		Metrics:  recorder,
		Logger:   baseLogger.With("component", "orchestrator"),
		Options: usecase.CrawlOptions{
			BatchSize:    cfg.Crawl.BatchSize,
			BatchDelay:   cfg.Crawl.BatchDelay,
			MaxAttempts:  cfg.Crawl.MaxAttempts,
			RetryBackoff: cfg.Crawl.RetryBackoff,
			RunTimeout:   cfg.Crawl.RunTimeout,
			DenyHosts:    cfg.Crawl.DenyHosts,
		},
	})
	a.filter = usecase.NewFilterRunner(a.store, summarizer, recorder, baseLogger.With("component", "filter"), usecase.FilterOptions{
		Concurrency:    cfg.Filter.Concurrency,
		Instructions:   cfg.Filter.Instructions,
		TargetAgeRange: cfg.Filter.TargetAgeRange,
	})
	a.review = usecase.NewReviewService(a.store, summarizer, baseLogger.With("component", "review"))

	return a, nil
}

// Run performs a single crawl run.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	return a.orchestrator.RunOnce(ctx)
}

// Filter summarizes every pre_filtered article.
func (a *Application) Filter(ctx context.Context) (usecase.FilterReport, error) {
	return a.filter.Run(ctx)
}

// Handler returns the admin API.
func (a *Application) Handler() http.Handler {
	return api.NewRouter(api.RouterDeps{
		Reviewer: a.review,
		Filter:   a.filter,
		Crawler:  a.orchestrator,
		Metrics:  metrics.Handler(a.registry),
		Logger:   a.logger.With("component", "api"),
	})
}

// Serve runs the scheduled crawl and the admin API until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "cron"))
	if err != nil {
		return err
	}
	sched := usecase.NewScheduler(driver, a.orchestrator, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("admin api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler shutdown", "error", err)
	}
	return serveErr
}

// Close releases the browser and the database handle.
func (a *Application) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("closing browser", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}
}
