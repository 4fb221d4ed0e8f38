package parser

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/scanner"
)

// DefaultMaarivListingURL is the maariv homepage.
const DefaultMaarivListingURL = "https://www.maariv.co.il/"

const maxListingLinks = 40

var maarivSelectors = selectors{
	Title:     []string{"h1.article-title", "h1", "meta[property='og:title']@content"},
	Summary:   []string{".article-sub-title", "h2.article-subtitle", "meta[name='description']@content"},
	Authors:   []string{".article-reporter-name", ".reporter a", ".article-reporter"},
	Body:      []string{".article-body p", "article .text p", "article p"},
	Images:    []string{".article-image img@src", "article figure img@src", "meta[property='og:image']@content"},
	Category:  []string{".breadcrumbs li a", ".breadcrumb a"},
	ISODate:   []string{"meta[property='article:published_time']@content", "time@datetime"},
	LocalDate: []string{".article-publish-date", ".article-date"},
}

// MaarivAdapter lists articles from the homepage DOM and extracts article pages.
type MaarivAdapter struct {
	extractor
	listingURL string
}

var _ scanner.Adapter = (*MaarivAdapter)(nil)

// NewMaarivAdapter wires the shared deps; listingURL defaults to the homepage.
func NewMaarivAdapter(deps Deps, listingURL string) *MaarivAdapter {
	if listingURL == "" {
		listingURL = DefaultMaarivListingURL
	}
	return &MaarivAdapter{extractor: newExtractor(deps, "maariv"), listingURL: listingURL}
}

// Name identifies the adapter inside the registry.
func (m *MaarivAdapter) Name() string {
	return "maariv"
}

// Hosts lists the hostnames owned by maariv.
func (m *MaarivAdapter) Hosts() []string {
	return []string{"maariv.co.il"}
}

// ListArticles collects article links and their headlines from the homepage.
func (m *MaarivAdapter) ListArticles(ctx context.Context) ([]domain.Draft, error) {
	doc, err := m.loader.load(ctx, m.listingURL)
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(m.listingURL)

	var drafts []domain.Draft
	seen := map[string]struct{}{}
	doc.Find("a[href*='/news/'], a[href*='/breaking-news/']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		link := resolve(base, strings.TrimSpace(href))
		u, err := url.Parse(link)
		if err != nil || !scanner.MatchesHost(u.Hostname(), "maariv.co.il") {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}

		title := m.norm.Clean(a.Find(".title, h2, h3").First().Text())
		if title == "" {
			title = m.norm.Clean(a.Text())
		}
		if title == "" {
			return true
		}
		seen[link] = struct{}{}

		kind := domain.KindArticle
		if maarivFlashPath(u) {
			kind = domain.KindFlash
		}
		drafts = append(drafts, domain.Draft{
			Title:       title,
			OriginalURL: link,
			Source:      m.source,
			Kind:        kind,
			PublishDate: m.now(),
		})
		return len(drafts) < maxListingLinks
	})

	m.debug("maariv listing parsed", "items", len(drafts))
	return drafts, nil
}

// ExtractArticle loads the article page and applies the maariv selectors.
func (m *MaarivAdapter) ExtractArticle(ctx context.Context, rawURL string) (domain.Draft, error) {
	return m.extract(ctx, rawURL, maarivSelectors, func(u *url.URL, doc *goquery.Document) bool {
		return maarivFlashPath(u) || doc.Find(".breaking-news-item").Length() > 0
	})
}

func maarivFlashPath(u *url.URL) bool {
	return strings.Contains(strings.ToLower(u.Path), "/breaking-news/")
}
