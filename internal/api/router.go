// Package api exposes the admin control surface and the published feed over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/usecase"
)

// Reviewer is the admin review surface.
type Reviewer interface {
	Review(ctx context.Context, req usecase.ReviewRequest) (domain.RawArticle, error)
	Get(ctx context.Context, id string) (domain.RawArticle, error)
	List(ctx context.Context, status domain.Status) ([]domain.RawArticle, error)
	Published(ctx context.Context, limit int) ([]domain.RawArticle, error)
}

// FilterRunner runs the summarizer over pending articles.
type FilterRunner interface {
	Run(ctx context.Context) (usecase.FilterReport, error)
}

// Crawler triggers a single crawl run.
type Crawler interface {
	RunOnce(ctx context.Context) (usecase.Report, error)
}

// RouterDeps groups the handler dependencies.
type RouterDeps struct {
	Reviewer Reviewer
	Filter   FilterRunner
	Crawler  Crawler

	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter mounts every endpoint.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	h := &handler{
		reviewer: deps.Reviewer,
		filter:   deps.Filter,
		crawler:  deps.Crawler,
		logger:   deps.Logger,
	}

	r.Get("/healthz", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/articles", func(r chi.Router) {
			r.Get("/", h.listArticles)
			r.Get("/published", h.listPublished)
			r.Get("/{id}", h.getArticle)
			r.Post("/{id}/review", h.reviewArticle)
		})
		r.Post("/filter/run", h.runFilter)
		r.Post("/crawl/run", h.runCrawl)
	})

	return r
}
