package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
	"KiddoNews/internal/scanner"
)

var testNow = time.Date(2024, 3, 13, 14, 5, 0, 0, time.UTC)

type fakeAdapter struct {
	name    string
	hosts   []string
	stubs   []domain.Draft
	listErr error
	// extract is called for every url; nil falls back to a valid article.
	extract func(ctx context.Context, url string) (domain.Draft, error)

	mu    sync.Mutex
	calls []string
}

var _ scanner.Adapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) Name() string    { return f.name }
func (f *fakeAdapter) Hosts() []string { return f.hosts }

func (f *fakeAdapter) ListArticles(context.Context) ([]domain.Draft, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stubs, nil
}

func (f *fakeAdapter) ExtractArticle(ctx context.Context, url string) (domain.Draft, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.extract != nil {
		return f.extract(ctx, url)
	}
	return article(url), nil
}

func (f *fakeAdapter) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func article(url string) domain.Draft {
	return domain.Draft{
		Title:       "כותרת " + url,
		Content:     "גוף הכתבה " + url,
		Source:      "ynet",
		OriginalURL: url,
		PublishDate: testNow,
	}
}

func stubs(n int) []domain.Draft {
	out := make([]domain.Draft, n)
	for i := range out {
		out[i] = domain.Draft{OriginalURL: fmt.Sprintf("https://www.ynet.co.il/news/article/%d", i+1), Source: "ynet"}
	}
	return out
}

func navigationTimeout(url string) error {
	return &domain.ExtractionError{
		URL:   url,
		Stage: domain.StageNavigate,
		Err:   fmt.Errorf("%w: %w", domain.ErrNavigation, context.DeadlineExceeded),
	}
}

type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

var _ ports.Notifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) Alert(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type fakeSummarizer struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []ports.SummarizeOptions
}

var _ ports.Summarizer = (*fakeSummarizer)(nil)

func (s *fakeSummarizer) Summarize(_ context.Context, a domain.RawArticle, opts ports.SummarizeOptions) (ports.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opts)
	if err := s.errs[a.ID]; err != nil {
		return ports.Summary{}, err
	}
	return ports.Summary{
		Text:     "סיכום " + a.ID,
		AgeRange: "8-12",
		Analysis: domain.Analysis{Relevance: 0.8, Sentiment: "neutral"},
	}, nil
}

// blockingSummarizer holds every call until release is closed.
type blockingSummarizer struct {
	entered chan string
	release chan struct{}
}

var _ ports.Summarizer = (*blockingSummarizer)(nil)

func (s *blockingSummarizer) Summarize(ctx context.Context, a domain.RawArticle, _ ports.SummarizeOptions) (ports.Summary, error) {
	s.entered <- a.ID
	select {
	case <-s.release:
	case <-ctx.Done():
		return ports.Summary{}, ctx.Err()
	}
	return ports.Summary{Text: "סיכום " + a.ID, AgeRange: "8-12"}, nil
}
