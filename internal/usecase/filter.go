package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/metrics"
	"KiddoNews/internal/ports"
)

// DefaultFilterConcurrency bounds parallel summarizer calls.
const DefaultFilterConcurrency = 4

// Filter outcomes recorded in metrics.
const (
	FilterOutcomeFiltered    = "filtered"
	FilterOutcomeRateLimited = "rate_limited"
	FilterOutcomeUnavailable = "unavailable"
	FilterOutcomeError       = "error"
)

// FilterOptions tunes the batch filter.
type FilterOptions struct {
	Concurrency    int
	Instructions   string
	TargetAgeRange string
}

// FilterFailure is a summarizer error not covered by rate limiting or unavailability.
type FilterFailure struct {
	ArticleID string `json:"articleId"`
	Message   string `json:"message"`
}

// FilterReport partitions a batch filter run.
type FilterReport struct {
	Total       int             `json:"total"`
	Filtered    []string        `json:"filtered"`
	RateLimited []string        `json:"rateLimited"`
	Unavailable []string        `json:"unavailable"`
	Errors      []FilterFailure `json:"errors"`
}

// FilterRunner summarizes stored articles and moves them to gpt_filtered.
type FilterRunner struct {
	store      ports.ArticleStore
	summarizer ports.Summarizer
	metrics    metrics.Recorder
	logger     *slog.Logger
	opts       FilterOptions
	now        func() time.Time
}

// NewFilterRunner builds the runner; zero concurrency falls back to the default.
func NewFilterRunner(store ports.ArticleStore, summarizer ports.Summarizer, recorder metrics.Recorder, logger *slog.Logger, opts FilterOptions) *FilterRunner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultFilterConcurrency
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &FilterRunner{
		store:      store,
		summarizer: summarizer,
		metrics:    recorder,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Run filters every pre_filtered article.
func (f *FilterRunner) Run(ctx context.Context) (FilterReport, error) {
	return f.RunStatus(ctx, domain.StatusPreFiltered)
}

// RunStatus filters every article in status. Per-article failures never cancel siblings and are
// reported by kind; only listing the input can fail the run.
func (f *FilterRunner) RunStatus(ctx context.Context, status domain.Status) (FilterReport, error) {
	articles, err := f.store.ListByStatus(ctx, status)
	if err != nil {
		return FilterReport{}, fmt.Errorf("list %s articles: %w", status, err)
	}

	report := FilterReport{
		Total:       len(articles),
		Filtered:    []string{},
		RateLimited: []string{},
		Unavailable: []string{},
		Errors:      []FilterFailure{},
	}
	began := time.Now()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(f.opts.Concurrency)
	for _, article := range articles {
		article := article
		g.Go(func() error {
			err := f.filterOne(ctx, article)
			outcome := classifyFilterError(err)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case FilterOutcomeFiltered:
				report.Filtered = append(report.Filtered, article.ID)
			case FilterOutcomeRateLimited:
				report.RateLimited = append(report.RateLimited, article.ID)
			case FilterOutcomeUnavailable:
				report.Unavailable = append(report.Unavailable, article.ID)
			default:
				report.Errors = append(report.Errors, FilterFailure{ArticleID: article.ID, Message: err.Error()})
			}
			f.metrics.RecordFilter(outcome)
			if err != nil {
				f.warn("filtering article failed", "id", article.ID, "outcome", outcome, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	failures := len(report.RateLimited) + len(report.Unavailable) + len(report.Errors)
	f.metrics.RecordRun("filter", time.Since(began), failures)
	f.info("filter finished", "total", report.Total, "filtered", len(report.Filtered), "failed", failures)
	return report, nil
}

func (f *FilterRunner) filterOne(ctx context.Context, article domain.RawArticle) error {
	if f.summarizer == nil {
		return errors.New("no summarizer configured")
	}

	summary, err := f.summarizer.Summarize(ctx, article, ports.SummarizeOptions{
		Instructions:   f.opts.Instructions,
		TargetAgeRange: targetFor(article, f.opts.TargetAgeRange),
	})
	if err != nil {
		return err
	}

	from := domain.State{Status: article.Status, Review: article.ReviewStatus}
	applySummary(&article, summary)
	if err := domain.Apply(&article, domain.TriggerFiltered, f.now()); err != nil {
		return err
	}
	if err := f.store.UpdateReview(ctx, article, from); err != nil {
		return fmt.Errorf("store filtered article %s: %w", article.ID, err)
	}
	return nil
}

func classifyFilterError(err error) string {
	switch {
	case err == nil:
		return FilterOutcomeFiltered
	case errors.Is(err, domain.ErrRateLimited):
		return FilterOutcomeRateLimited
	case errors.Is(err, domain.ErrServiceUnavailable):
		return FilterOutcomeUnavailable
	default:
		return FilterOutcomeError
	}
}

func applySummary(article *domain.RawArticle, summary ports.Summary) {
	analysis := summary.Analysis
	article.GPTSummary = summary.Text
	article.GPTAnalysis = &analysis
	if summary.AgeRange != "" {
		article.AgeRange = summary.AgeRange
	}
}

func targetFor(article domain.RawArticle, fallback string) string {
	if article.TargetAgeRange != "" {
		return article.TargetAgeRange
	}
	return fallback
}

func (f *FilterRunner) info(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Info(msg, args...)
	}
}

func (f *FilterRunner) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
