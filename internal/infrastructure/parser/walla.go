package parser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/scanner"
)

var wallaSelectors = selectors{
	Title:     []string{"h1.title", "article h1", "h1"},
	Summary:   []string{"p.subtitle", ".article-subtitle", "meta[name='description']@content"},
	Authors:   []string{".writer-name", ".author", "meta[name='author']@content"},
	Body:      []string{"section.article-content p", ".article-content p", "article p"},
	Images:    []string{"figure img@src", "meta[property='og:image']@content"},
	Category:  []string{".breadcrumbs a", "meta[property='article:section']@content"},
	ISODate:   []string{"time@datetime", "meta[property='article:published_time']@content"},
	LocalDate: []string{".date", ".article-date"},
}

// WallaAdapter extracts walla article pages. Walla's listing pages are rendered per user
// and are not crawled.
type WallaAdapter struct {
	extractor
}

var _ scanner.Adapter = (*WallaAdapter)(nil)

// NewWallaAdapter wires the shared deps.
func NewWallaAdapter(deps Deps) *WallaAdapter {
	return &WallaAdapter{extractor: newExtractor(deps, "walla")}
}

// Name identifies the adapter inside the registry.
func (w *WallaAdapter) Name() string {
	return "walla"
}

// Hosts lists the hostnames owned by walla.
func (w *WallaAdapter) Hosts() []string {
	return []string{"walla.co.il"}
}

// ListArticles is not supported.
func (w *WallaAdapter) ListArticles(context.Context) ([]domain.Draft, error) {
	return nil, fmt.Errorf("walla: %w", domain.ErrListingUnsupported)
}

// ExtractArticle loads the article page and applies the walla selectors.
func (w *WallaAdapter) ExtractArticle(ctx context.Context, rawURL string) (domain.Draft, error) {
	return w.extract(ctx, rawURL, wallaSelectors, func(u *url.URL, doc *goquery.Document) bool {
		return strings.Contains(strings.ToLower(u.Path), "/break/") || doc.Find(".breaking-item").Length() > 0
	})
}
