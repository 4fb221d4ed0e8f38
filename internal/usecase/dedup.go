package usecase

import (
	"context"
	"fmt"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

// Fields a duplicate can match on.
const (
	MatchOriginalURL = "originalUrl"
	MatchTitle       = "title"
	MatchContent     = "content"
)

// DedupResult describes the stored article a draft collides with.
type DedupResult struct {
	IsDuplicate  bool   `json:"isDuplicate"`
	MatchedField string `json:"matchedField,omitempty"`
	MatchingID   string `json:"matchingId,omitempty"`
}

// Deduplicator checks drafts against the persisted store.
type Deduplicator struct {
	store ports.ArticleStore
}

// NewDeduplicator wires the store lookup.
func NewDeduplicator(store ports.ArticleStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// IsDuplicate matches on original url, exact title or exact non-empty content.
func (d *Deduplicator) IsDuplicate(ctx context.Context, draft domain.Draft) (DedupResult, error) {
	existing, found, err := d.store.FindDuplicate(ctx, draft.OriginalURL, draft.Title, draft.Content)
	if err != nil {
		return DedupResult{}, fmt.Errorf("dedup lookup %s: %w", draft.OriginalURL, err)
	}
	if !found {
		return DedupResult{}, nil
	}

	field := MatchContent
	switch {
	case existing.OriginalURL == draft.OriginalURL:
		field = MatchOriginalURL
	case draft.Title != "" && existing.Title == draft.Title:
		field = MatchTitle
	}
	return DedupResult{IsDuplicate: true, MatchedField: field, MatchingID: existing.ID}, nil
}
