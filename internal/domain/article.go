package domain

import (
	"strings"
	"time"
)

// Kind discriminates full articles from short flash items.
type Kind string

const (
	KindArticle Kind = "article"
	KindFlash   Kind = "flash"
)

// Draft is an extracted article that has not been persisted yet.
type Draft struct {
	Title       string
	Content     string
	Summary     []string
	Author      string
	Source      string
	OriginalURL string
	PublishDate time.Time
	Category    string
	Subcategory string
	Images      []string
	Kind        Kind
}

// IsFlash reports whether the draft is a short item without a body.
func (d Draft) IsFlash() bool {
	return d.Kind == KindFlash
}

// Validate enforces the required fields: a title always, a body unless the item is a flash.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &ExtractionError{URL: d.OriginalURL, Stage: StageValidate, Err: missingField("title")}
	}
	if !d.IsFlash() && strings.TrimSpace(d.Content) == "" {
		return &ExtractionError{URL: d.OriginalURL, Stage: StageValidate, Err: missingField("content")}
	}
	return nil
}

// Analysis is the structured output of the summarizer. Opaque to the ingestion core.
type Analysis struct {
	Relevance        float64  `json:"relevance"`
	Sentiment        string   `json:"sentiment"`
	KeyPhrases       []string `json:"keyPhrases"`
	Entities         []string `json:"entities"`
	SummarySentences []string `json:"summarySentences"`
}

// Comment is a reader comment attached to an article. Appended by other services.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// RawArticle is the persisted article moving through the editorial lifecycle.
type RawArticle struct {
	Draft

	ID              string
	Status          Status
	ReviewStatus    ReviewStatus
	ProcessingError string

	GPTSummary  string
	GPTAnalysis *Analysis

	AgeRange       string
	TargetAgeRange string
	AdminComments  string
	AdminNotes     string

	Likes    int
	Saves    int
	Comments []Comment

	LastUpdated time.Time
	CrawledAt   time.Time
}

// Published reports whether end users may see the article.
func (a RawArticle) Published() bool {
	return a.ReviewStatus == ReviewApproved
}

// NewRawArticle creates the entity for a successfully extracted draft.
func NewRawArticle(id string, draft Draft, now time.Time) RawArticle {
	if draft.Kind == "" {
		draft.Kind = KindArticle
	}
	return RawArticle{
		Draft:        draft,
		ID:           id,
		Status:       StatusPreFiltered,
		ReviewStatus: ReviewPending,
		LastUpdated:  now,
		CrawledAt:    now,
	}
}

// NewFailedArticle creates the stub persisted when extraction fails.
func NewFailedArticle(id string, stub Draft, cause error, now time.Time) RawArticle {
	if stub.Kind == "" {
		stub.Kind = KindArticle
	}
	msg := "unknown extraction failure"
	if cause != nil {
		msg = cause.Error()
	}
	return RawArticle{
		Draft:           stub,
		ID:              id,
		Status:          StatusFailed,
		ReviewStatus:    ReviewPending,
		ProcessingError: msg,
		LastUpdated:     now,
		CrawledAt:       now,
	}
}
