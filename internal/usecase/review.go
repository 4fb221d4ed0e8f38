package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

// ReviewRequest is an admin decision on one article.
type ReviewRequest struct {
	ArticleID      string
	Action         string
	AdminComments  string
	TargetAgeRange string
	AdminNotes     string
}

// ReviewService drives the admin side of the lifecycle.
type ReviewService struct {
	store      ports.ArticleStore
	summarizer ports.Summarizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewReviewService wires the store and the summarizer used by refilter.
func NewReviewService(store ports.ArticleStore, summarizer ports.Summarizer, logger *slog.Logger) *ReviewService {
	return &ReviewService{store: store, summarizer: summarizer, logger: logger, now: time.Now}
}

// Review applies approve, reject or refilter and returns the updated article.
// Refilter re-runs the summarizer with the admin comments as instructions before
// resetting the article to pending/pending; a summarizer failure leaves it untouched.
func (s *ReviewService) Review(ctx context.Context, req ReviewRequest) (domain.RawArticle, error) {
	trigger, err := domain.ParseReviewAction(req.Action)
	if err != nil {
		return domain.RawArticle{}, err
	}

	article, err := s.store.FindByID(ctx, req.ArticleID)
	if err != nil {
		return domain.RawArticle{}, err
	}

	from := domain.State{Status: article.Status, Review: article.ReviewStatus}
	if req.AdminComments != "" {
		article.AdminComments = req.AdminComments
	}
	if req.TargetAgeRange != "" {
		article.TargetAgeRange = req.TargetAgeRange
	}
	if req.AdminNotes != "" {
		article.AdminNotes = req.AdminNotes
	}

	if trigger == domain.TriggerRefilter {
		if s.summarizer == nil {
			return domain.RawArticle{}, fmt.Errorf("refilter %s: %w", article.ID, domain.ErrServiceUnavailable)
		}
		summary, err := s.summarizer.Summarize(ctx, article, ports.SummarizeOptions{
			Instructions:   article.AdminComments,
			TargetAgeRange: article.TargetAgeRange,
		})
		if err != nil {
			return domain.RawArticle{}, fmt.Errorf("refilter %s: %w", article.ID, err)
		}
		applySummary(&article, summary)
	}

	if err := domain.Apply(&article, trigger, s.now()); err != nil {
		return domain.RawArticle{}, err
	}
	if err := s.store.UpdateReview(ctx, article, from); err != nil {
		return domain.RawArticle{}, fmt.Errorf("store review of %s: %w", article.ID, err)
	}

	if s.logger != nil {
		s.logger.Info("article reviewed", "id", article.ID, "action", trigger, "state", domain.State{Status: article.Status, Review: article.ReviewStatus})
	}
	return article, nil
}

// Get loads one article.
func (s *ReviewService) Get(ctx context.Context, id string) (domain.RawArticle, error) {
	return s.store.FindByID(ctx, id)
}

// List returns articles in a status.
func (s *ReviewService) List(ctx context.Context, status domain.Status) ([]domain.RawArticle, error) {
	return s.store.ListByStatus(ctx, status)
}

// Published returns approved articles for end users.
func (s *ReviewService) Published(ctx context.Context, limit int) ([]domain.RawArticle, error) {
	return s.store.ListPublished(ctx, limit)
}
