package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

// MemoryRepository keeps articles in process. Used for dry runs and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]domain.RawArticle
	byURL map[string]string
}

var _ ports.ArticleStore = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  map[string]domain.RawArticle{},
		byURL: map[string]string{},
	}
}

// Create stores a new article. A failed stub awaiting retry under the same url is replaced;
// any other owner of the url yields domain.ErrDuplicate.
func (r *MemoryRepository) Create(_ context.Context, article domain.RawArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.byURL[article.OriginalURL]; exists {
		if !retryable(r.byID[id]) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicate, article.OriginalURL)
		}
		delete(r.byID, id)
	}
	r.byID[article.ID] = article
	r.byURL[article.OriginalURL] = article.ID
	return nil
}

// UpsertFailed stores the stub unless a non-failed article owns the url.
func (r *MemoryRepository) UpsertFailed(_ context.Context, article domain.RawArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.byURL[article.OriginalURL]
	if !exists {
		r.byID[article.ID] = article
		r.byURL[article.OriginalURL] = article.ID
		return nil
	}

	existing := r.byID[id]
	if !retryable(existing) {
		return nil
	}
	existing.ProcessingError = article.ProcessingError
	existing.LastUpdated = article.LastUpdated
	r.byID[id] = existing
	return nil
}

// FindDuplicate returns the earliest crawled article matching url, title or non-empty content.
// Failed stubs awaiting retry never match.
func (r *MemoryRepository) FindDuplicate(_ context.Context, url, title, content string) (domain.RawArticle, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found domain.RawArticle
		ok    bool
	)
	for _, a := range r.byID {
		if retryable(a) {
			continue
		}
		match := a.OriginalURL == url ||
			(title != "" && a.Title == title) ||
			(content != "" && a.Content == content)
		if !match {
			continue
		}
		if !ok || a.CrawledAt.Before(found.CrawledAt) {
			found, ok = a, true
		}
	}
	return found, ok, nil
}

// FindByID loads a single article.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (domain.RawArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return domain.RawArticle{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return a, nil
}

// ListByStatus returns articles in the status, oldest crawl first.
func (r *MemoryRepository) ListByStatus(_ context.Context, status domain.Status) ([]domain.RawArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.RawArticle
	for _, a := range r.byID {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CrawledAt.Before(out[j].CrawledAt) })
	return out, nil
}

// ListPublished returns approved articles, newest first.
func (r *MemoryRepository) ListPublished(_ context.Context, limit int) ([]domain.RawArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.RawArticle
	for _, a := range r.byID {
		if a.Published() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishDate.After(out[j].PublishDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateReview replaces lifecycle, summarizer and editorial fields if the article is still in from.
func (r *MemoryRepository) UpdateReview(_ context.Context, article domain.RawArticle, from domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[article.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, article.ID)
	}
	if current := (domain.State{Status: existing.Status, Review: existing.ReviewStatus}); current != from {
		return staleState(article.ID, from, current)
	}

	existing.Status = article.Status
	existing.ReviewStatus = article.ReviewStatus
	existing.ProcessingError = article.ProcessingError
	existing.GPTSummary = article.GPTSummary
	existing.GPTAnalysis = article.GPTAnalysis
	existing.AgeRange = article.AgeRange
	existing.TargetAgeRange = article.TargetAgeRange
	existing.AdminComments = article.AdminComments
	existing.AdminNotes = article.AdminNotes
	existing.LastUpdated = article.LastUpdated
	r.byID[article.ID] = existing
	return nil
}

func staleState(id string, from, current domain.State) error {
	return fmt.Errorf("%w: article %s moved from %s to %s concurrently", domain.ErrInvalidTransition, id, from, current)
}

func retryable(a domain.RawArticle) bool {
	return a.Status == domain.StatusFailed && a.ReviewStatus == domain.ReviewPending
}
