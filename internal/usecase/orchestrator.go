package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/metrics"
	"KiddoNews/internal/ports"
	"KiddoNews/internal/scanner"
)

const (
	// DefaultBatchSize is the number of articles extracted back to back.
	DefaultBatchSize = 5
	// DefaultBatchDelay separates two batches.
	DefaultBatchDelay = 30 * time.Second

	maxRetryBackoff = 2 * time.Minute
	alertTimeout    = 10 * time.Second
)

// CrawlOptions tunes batching and retries.
type CrawlOptions struct {
	BatchSize  int
	BatchDelay time.Duration

	// MaxAttempts bounds extraction attempts for navigation failures; 1 disables retries.
	MaxAttempts  int
	RetryBackoff time.Duration

	// RunTimeout caps RunOnce; zero means none.
	RunTimeout time.Duration
	DenyHosts  []string
}

// OrchestratorDeps wires all driven adapters into the crawl.
type OrchestratorDeps struct {
	Registry *scanner.Registry
	Store    ports.ArticleStore
	Notifier ports.Notifier
	Metrics  metrics.Recorder
	Logger   *slog.Logger
	Options  CrawlOptions

	Now   func() time.Time
	NewID func() string
	// Sleep waits between batches and retries; it must return early with ctx's error.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Report summarizes one crawl run.
type Report struct {
	Processed  int      `json:"processed"`
	Total      int      `json:"total"`
	Duplicates int      `json:"duplicates"`
	Skipped    int      `json:"skipped"`
	Batches    int      `json:"batches"`
	FailedURLs []string `json:"failedUrls"`
	Stopped    bool     `json:"stopped"`
}

// SaveOutcome tells whether SaveArticle persisted the draft.
type SaveOutcome struct {
	Created   bool        `json:"created"`
	ArticleID string      `json:"articleId,omitempty"`
	Duplicate DedupResult `json:"duplicate"`
}

// Orchestrator crawls listings, extracts articles in polite batches and persists them with
// per-article failure isolation.
type Orchestrator struct {
	registry *scanner.Registry
	store    ports.ArticleStore
	dedup    *Deduplicator
	notifier ports.Notifier
	metrics  metrics.Recorder
	logger   *slog.Logger
	opts     CrawlOptions

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error

	running atomic.Bool
}

// NewOrchestrator applies defaults to the zero-valued options.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	opts := deps.Options
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	o := &Orchestrator{
		registry: deps.Registry,
		store:    deps.Store,
		dedup:    NewDeduplicator(deps.Store),
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		opts:     opts,
		now:      deps.Now,
		newID:    deps.NewID,
		sleep:    deps.Sleep,
	}
	if o.registry == nil {
		o.registry = scanner.NewRegistry()
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// CrawlMainPage asks every listing-capable adapter for stubs and concatenates them.
// Listing failures are logged and never abort the crawl.
func (o *Orchestrator) CrawlMainPage(ctx context.Context) []domain.Draft {
	var stubs []domain.Draft
	for _, adapter := range o.registry.Adapters() {
		if ctx.Err() != nil {
			break
		}

		listed, err := adapter.ListArticles(ctx)
		switch {
		case errors.Is(err, domain.ErrListingUnsupported):
			o.debug("adapter does not list", "adapter", adapter.Name())
			continue
		case err != nil:
			o.warn("listing failed", "adapter", adapter.Name(), "error", err)
			continue
		}

		o.info("listing crawled", "adapter", adapter.Name(), "stubs", len(listed))
		stubs = append(stubs, listed...)
	}
	return stubs
}

// CrawlArticle routes url to the adapter owning its host. Unroutable and denylisted hosts
// yield nil without error.
func (o *Orchestrator) CrawlArticle(ctx context.Context, url string) (*domain.Draft, error) {
	host := scanner.HostOf(url)
	if host == "" {
		o.warn("skipping url without host", "url", url)
		return nil, nil
	}
	if o.denied(host) {
		o.info("skipping denylisted host", "url", url, "host", host)
		return nil, nil
	}

	adapter, ok := o.registry.Route(url)
	if !ok {
		o.info("no adapter for host", "url", url, "host", host)
		return nil, nil
	}

	draft, err := adapter.ExtractArticle(ctx, url)
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// SaveArticle validates the draft, checks for duplicates and persists it as pre_filtered.
// Duplicates are an outcome, not an error.
func (o *Orchestrator) SaveArticle(ctx context.Context, draft domain.Draft) (SaveOutcome, error) {
	if err := draft.Validate(); err != nil {
		return SaveOutcome{}, err
	}

	dup, err := o.dedup.IsDuplicate(ctx, draft)
	if err != nil {
		return SaveOutcome{}, err
	}
	if dup.IsDuplicate {
		o.info("duplicate skipped", "url", draft.OriginalURL, "matched", dup.MatchedField, "existing", dup.MatchingID)
		return SaveOutcome{Duplicate: dup}, nil
	}

	article := domain.NewRawArticle(o.newID(), draft, o.now())
	if err := o.store.Create(ctx, article); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			o.info("duplicate rejected by store", "url", draft.OriginalURL)
			return SaveOutcome{Duplicate: DedupResult{IsDuplicate: true, MatchedField: MatchOriginalURL}}, nil
		}
		return SaveOutcome{}, fmt.Errorf("save %s: %w", draft.OriginalURL, err)
	}
	return SaveOutcome{Created: true, ArticleID: article.ID}, nil
}

// ProcessBatches extracts and persists stubs in fixed-size batches with a pause in between.
// Once ctx is done no new article or batch starts; the article in flight finishes.
func (o *Orchestrator) ProcessBatches(ctx context.Context, stubs []domain.Draft) Report {
	report := Report{Total: len(stubs), FailedURLs: []string{}}

	for start := 0; start < len(stubs); start += o.opts.BatchSize {
		if start > 0 {
			o.debug("waiting before next batch", "delay", o.opts.BatchDelay)
			if err := o.sleep(ctx, o.opts.BatchDelay); err != nil {
				report.Stopped = true
				break
			}
		}
		if ctx.Err() != nil {
			report.Stopped = true
			break
		}

		end := min(start+o.opts.BatchSize, len(stubs))
		report.Batches++
		began := time.Now()
		o.debug("batch started", "batch", report.Batches, "from", start, "to", end)

		for _, stub := range stubs[start:end] {
			if ctx.Err() != nil {
				report.Stopped = true
				break
			}
			o.processOne(ctx, stub, &report)
		}
		o.metrics.RecordBatch(time.Since(began))

		if report.Stopped {
			break
		}
	}

	if report.Stopped {
		o.info("crawl stopped before completion", "processed", report.Processed, "total", report.Total)
	}
	return report
}

// RunOnce crawls all listings and processes them. Concurrent calls get domain.ErrRunInProgress.
func (o *Orchestrator) RunOnce(ctx context.Context) (Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Report{}, domain.ErrRunInProgress
	}
	defer o.running.Store(false)

	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	began := time.Now()
	stubs := o.CrawlMainPage(ctx)
	report := o.ProcessBatches(ctx, stubs)
	o.metrics.RecordRun("crawl", time.Since(began), len(report.FailedURLs))

	o.info("crawl finished",
		"processed", report.Processed,
		"total", report.Total,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"failed", len(report.FailedURLs),
		"batches", report.Batches,
		"elapsed", time.Since(began).Round(time.Second))

	if len(report.FailedURLs) > 0 {
		o.alert(ctx, crawlSummary(report))
	}
	return report, nil
}

// Running reports whether a RunOnce is active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) processOne(ctx context.Context, stub domain.Draft, report *Report) {
	url := stub.OriginalURL
	source := stub.Source

	// The stop signal is checked between articles; the one in flight runs to completion.
	work := context.WithoutCancel(ctx)

	draft, err := o.crawlWithRetry(ctx, work, url)
	if err != nil {
		o.recordFailure(work, stub, err, report)
		return
	}
	if draft == nil {
		report.Skipped++
		o.metrics.RecordArticle(source, metrics.OutcomeSkipped)
		return
	}
	mergeStub(draft, stub)

	outcome, err := o.SaveArticle(work, *draft)
	var extractErr *domain.ExtractionError
	switch {
	case errors.As(err, &extractErr):
		o.recordFailure(work, stub, err, report)
	case err != nil:
		o.logError("persisting article failed", "url", url, "error", err)
		report.FailedURLs = append(report.FailedURLs, url)
		o.metrics.RecordArticle(draft.Source, metrics.OutcomeFailed)
		o.alert(work, fmt.Sprintf("KiddoNews: failed to save %s: %v", url, err))
	case outcome.Created:
		report.Processed++
		o.metrics.RecordArticle(draft.Source, metrics.OutcomeSaved)
		o.debug("article saved", "url", url, "id", outcome.ArticleID)
	default:
		report.Duplicates++
		o.metrics.RecordArticle(draft.Source, metrics.OutcomeDuplicate)
	}
}

// crawlWithRetry retries navigation failures with exponential backoff. Backoff waits use the
// run context so a stop signal ends the retries.
func (o *Orchestrator) crawlWithRetry(runCtx, work context.Context, url string) (*domain.Draft, error) {
	backoff := o.opts.RetryBackoff
	for attempt := 1; ; attempt++ {
		draft, err := o.CrawlArticle(work, url)
		if err == nil || !domain.IsRetryable(err) || attempt >= o.opts.MaxAttempts {
			return draft, err
		}

		o.warn("navigation failed, retrying", "url", url, "attempt", attempt, "backoff", backoff, "error", err)
		if sleepErr := o.sleep(runCtx, backoff); sleepErr != nil {
			return nil, err
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, stub domain.Draft, cause error, report *Report) {
	url := stub.OriginalURL
	o.warn("article extraction failed", "url", url, "error", cause)
	report.FailedURLs = append(report.FailedURLs, url)
	o.metrics.RecordArticle(stub.Source, metrics.OutcomeFailed)

	failed := domain.NewFailedArticle(o.newID(), stub, cause, o.now())
	if err := o.store.UpsertFailed(ctx, failed); err != nil {
		o.logError("persisting failed stub failed", "url", url, "error", err)
		o.alert(ctx, fmt.Sprintf("KiddoNews: failed to record extraction failure for %s: %v", url, err))
	}
}

func (o *Orchestrator) denied(host string) bool {
	for _, pattern := range o.opts.DenyHosts {
		if scanner.MatchesHost(host, pattern) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) alert(ctx context.Context, message string) {
	if o.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	if err := o.notifier.Alert(ctx, message); err != nil {
		o.warn("operator alert failed", "error", err)
	}
}

// mergeStub fills fields the article page lacked from the listing stub.
func mergeStub(draft *domain.Draft, stub domain.Draft) {
	if len(draft.Summary) == 0 {
		draft.Summary = stub.Summary
	}
	if draft.Category == "" {
		draft.Category = stub.Category
	}
	if draft.Source == "" {
		draft.Source = stub.Source
	}
	if stub.IsFlash() {
		draft.Kind = domain.KindFlash
	}
}

func crawlSummary(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "KiddoNews crawl: %d/%d saved, %d duplicates, %d failed", r.Processed, r.Total, r.Duplicates, len(r.FailedURLs))
	if r.Stopped {
		b.WriteString(" (stopped early)")
	}
	for _, url := range r.FailedURLs {
		b.WriteString("\n- ")
		b.WriteString(url)
	}
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}

func (o *Orchestrator) logError(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Error(msg, args...)
	}
}
