package llm

import (
	"context"
	"strings"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

const stubSummaryRunes = 280

// StubSummarizer produces a truncated excerpt without calling a model. Used when no API key
// is configured.
type StubSummarizer struct{}

var _ ports.Summarizer = StubSummarizer{}

// Summarize returns the subtitle, or the opening of the content, as the summary.
func (StubSummarizer) Summarize(_ context.Context, article domain.RawArticle, opts ports.SummarizeOptions) (ports.Summary, error) {
	text := strings.Join(article.Summary, " ")
	if text == "" {
		text = article.Content
	}
	if text == "" {
		text = article.Title
	}
	if r := []rune(text); len(r) > stubSummaryRunes {
		text = string(r[:stubSummaryRunes]) + "…"
	}

	return ports.Summary{
		Text:     text,
		AgeRange: opts.TargetAgeRange,
		Analysis: domain.Analysis{SummarySentences: []string{text}},
	}, nil
}
