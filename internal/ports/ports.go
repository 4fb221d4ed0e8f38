package ports

import (
	"context"
	"time"

	"KiddoNews/internal/domain"
)

// Page is a single isolated browsing context.
type Page interface {
	SetUserAgent(ua string)
	SetHeaders(headers map[string]string)
	// Goto navigates and waits for the page to reach network idle.
	Goto(ctx context.Context, url string) error
	// Content returns the current DOM serialized as HTML.
	Content(ctx context.Context) ([]byte, error)
	Close() error
}

// Browser opens pages against the live web.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// ArticleStore persists RawArticles. Implementations enforce originalUrl uniqueness
// and report violations as domain.ErrDuplicate. A failed stub no admin has acted on
// (failed/pending) is a placeholder: Create replaces it and FindDuplicate ignores it.
type ArticleStore interface {
	Create(ctx context.Context, article domain.RawArticle) error
	// UpsertFailed records a failed extraction by original url. Existing articles that are
	// already past ingestion keep their state.
	UpsertFailed(ctx context.Context, article domain.RawArticle) error
	// FindDuplicate returns an article matching the url, exact title, or exact non-empty content.
	FindDuplicate(ctx context.Context, url, title, content string) (domain.RawArticle, bool, error)
	FindByID(ctx context.Context, id string) (domain.RawArticle, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.RawArticle, error)
	ListPublished(ctx context.Context, limit int) ([]domain.RawArticle, error)
	// UpdateReview atomically writes lifecycle, summarizer and editorial fields if the stored
	// article is still in state from. Otherwise it returns domain.ErrInvalidTransition and
	// writes nothing.
	UpdateReview(ctx context.Context, article domain.RawArticle, from domain.State) error
}

// SummarizeOptions carries admin guidance for a (re)summarization.
type SummarizeOptions struct {
	Instructions   string
	TargetAgeRange string
}

// Summary is the summarizer output stored on the article.
type Summary struct {
	Text     string
	AgeRange string
	Analysis domain.Analysis
}

// Summarizer simplifies and analyzes an article. Rate limiting and unavailability are
// reported as domain.ErrRateLimited and domain.ErrServiceUnavailable.
type Summarizer interface {
	Summarize(ctx context.Context, article domain.RawArticle, opts SummarizeOptions) (Summary, error)
}

// Notifier pushes operator alerts to Telegram or other channels.
type Notifier interface {
	Alert(ctx context.Context, message string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
