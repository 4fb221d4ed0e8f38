package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/usecase"
)

const (
	defaultPublishedLimit = 50
	maxPublishedLimit     = 500
)

type handler struct {
	reviewer Reviewer
	filter   FilterRunner
	crawler  Crawler
	logger   *slog.Logger
}

type reviewRequest struct {
	Action         string `json:"action"`
	AdminComments  string `json:"adminComments"`
	TargetAgeRange string `json:"targetAgeRange"`
	AdminNotes     string `json:"adminNotes"`
}

type articleResponse struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Content         string           `json:"content"`
	Summary         []string         `json:"summary"`
	Author          string           `json:"author,omitempty"`
	Source          string           `json:"source"`
	OriginalURL     string           `json:"originalUrl"`
	PublishDate     time.Time        `json:"publishDate"`
	Category        string           `json:"category,omitempty"`
	Subcategory     string           `json:"subcategory,omitempty"`
	Images          []string         `json:"images"`
	Kind            domain.Kind      `json:"kind"`
	Status          string           `json:"status"`
	ReviewStatus    string           `json:"adminReviewStatus"`
	ProcessingError string           `json:"processingError,omitempty"`
	GPTSummary      string           `json:"gptSummary,omitempty"`
	GPTAnalysis     *domain.Analysis `json:"gptAnalysis,omitempty"`
	AgeRange        string           `json:"ageRange,omitempty"`
	TargetAgeRange  string           `json:"targetAgeRange,omitempty"`
	AdminComments   string           `json:"adminComments,omitempty"`
	AdminNotes      string           `json:"adminNotes,omitempty"`
	Likes           int              `json:"likes"`
	Saves           int              `json:"saves"`
	Comments        []domain.Comment `json:"comments"`
	LastUpdated     time.Time        `json:"lastUpdated"`
	CrawledAt       time.Time        `json:"crawledAt"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// health reports liveness.
// GET /healthz
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listArticles lists articles by status, pre_filtered when omitted.
// GET /api/articles?status=gpt_filtered
func (h *handler) listArticles(w http.ResponseWriter, r *http.Request) {
	status := domain.StatusPreFiltered
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", err.Error())
			return
		}
		status = parsed
	}

	articles, err := h.reviewer.List(r.Context(), status)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(articles))
}

// listPublished lists approved articles, newest first.
// GET /api/articles/published?limit=20
func (h *handler) listPublished(w http.ResponseWriter, r *http.Request) {
	limit := defaultPublishedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", fmt.Sprintf("limit must be a positive integer, got %q", raw))
			return
		}
		limit = min(n, maxPublishedLimit)
	}

	articles, err := h.reviewer.Published(r.Context(), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(articles))
}

// getArticle returns one article.
// GET /api/articles/{id}
func (h *handler) getArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.reviewer.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(article))
}

// reviewArticle applies approve, reject or refilter.
// POST /api/articles/{id}/review
func (h *handler) reviewArticle(w http.ResponseWriter, r *http.Request) {
	var body reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		return
	}

	article, err := h.reviewer.Review(r.Context(), usecase.ReviewRequest{
		ArticleID:      chi.URLParam(r, "id"),
		Action:         body.Action,
		AdminComments:  body.AdminComments,
		TargetAgeRange: body.TargetAgeRange,
		AdminNotes:     body.AdminNotes,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(article))
}

// runFilter summarizes every pre_filtered article.
// POST /api/filter/run
func (h *handler) runFilter(w http.ResponseWriter, r *http.Request) {
	report, err := h.filter.Run(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// runCrawl crawls all listings and returns the run report. The run stops at the next
// article boundary if the client goes away.
// POST /api/crawl/run
func (h *handler) runCrawl(w http.ResponseWriter, r *http.Request) {
	report, err := h.crawler.RunOnce(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) handleError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("request failed", "error", err)
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict, "RUN_IN_PROGRESS"
	case errors.Is(err, domain.ErrUnknownAction):
		return http.StatusBadRequest, "UNKNOWN_ACTION"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func toResponse(a domain.RawArticle) articleResponse {
	return articleResponse{
		ID:              a.ID,
		Title:           a.Title,
		Content:         a.Content,
		Summary:         nonNil(a.Summary),
		Author:          a.Author,
		Source:          a.Source,
		OriginalURL:     a.OriginalURL,
		PublishDate:     a.PublishDate,
		Category:        a.Category,
		Subcategory:     a.Subcategory,
		Images:          nonNil(a.Images),
		Kind:            a.Kind,
		Status:          string(a.Status),
		ReviewStatus:    string(a.ReviewStatus),
		ProcessingError: a.ProcessingError,
		GPTSummary:      a.GPTSummary,
		GPTAnalysis:     a.GPTAnalysis,
		AgeRange:        a.AgeRange,
		TargetAgeRange:  a.TargetAgeRange,
		AdminComments:   a.AdminComments,
		AdminNotes:      a.AdminNotes,
		Likes:           a.Likes,
		Saves:           a.Saves,
		Comments:        nonNil(a.Comments),
		LastUpdated:     a.LastUpdated,
		CrawledAt:       a.CrawledAt,
	}
}

func toResponses(articles []domain.RawArticle) []articleResponse {
	out := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, toResponse(a))
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
