package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/scanner"
)

// DefaultYnetListingURL is the ynet breaking-news RSS feed.
const DefaultYnetListingURL = "https://www.ynet.co.il/Integration/StoryRss2.xml"

var ynetSelectors = selectors{
	Title:     []string{"h1.mainTitle", "h1", "meta[property='og:title']@content"},
	Summary:   []string{"h2.subTitle", ".article-subtitle", "meta[name='description']@content"},
	Authors:   []string{".authors .authorName", ".author-name", "meta[name='author']@content"},
	Body:      []string{"#ArticleBodyComponent .text_editor_paragraph", ".article-body p", "article p"},
	Images:    []string{"#ArticleBodyComponent img@src", ".mainMedia img@src", "meta[property='og:image']@content"},
	Category:  []string{".breadcrumbs a", "meta[property='article:section']@content"},
	ISODate:   []string{".date time@datetime", "meta[property='article:published_time']@content"},
	LocalDate: []string{".date-line", ".DateDisplay", ".date"},
}

// YnetAdapter lists articles from the ynet RSS feed and extracts article pages.
type YnetAdapter struct {
	extractor
	feed       *gofeed.Parser
	listingURL string
	timeout    time.Duration
}

var _ scanner.Adapter = (*YnetAdapter)(nil)

// NewYnetAdapter wires the shared deps; listingURL defaults to the public RSS feed.
func NewYnetAdapter(deps Deps, listingURL string) *YnetAdapter {
	if listingURL == "" {
		listingURL = DefaultYnetListingURL
	}
	ex := newExtractor(deps, "ynet")

	fp := gofeed.NewParser()
	fp.UserAgent = ex.loader.userAgent
	fp.Client = deps.HTTPClient
	if fp.Client == nil {
		fp.Client = &http.Client{Timeout: deps.NavigationTimeout}
	}
	return &YnetAdapter{extractor: ex, feed: fp, listingURL: listingURL, timeout: deps.NavigationTimeout}
}

// Name identifies the adapter inside the registry.
func (y *YnetAdapter) Name() string {
	return "ynet"
}

// Hosts lists the hostnames owned by ynet.
func (y *YnetAdapter) Hosts() []string {
	return []string{"ynet.co.il"}
}

// ListArticles reads the RSS feed; items become stubs carrying title, link and date.
func (y *YnetAdapter) ListArticles(ctx context.Context) ([]domain.Draft, error) {
	if err := y.loader.gate.Acquire(ctx); err != nil {
		return nil, &domain.ExtractionError{URL: y.listingURL, Stage: domain.StageList, Err: err}
	}

	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	feed, err := y.feed.ParseURLWithContext(y.listingURL, ctx)
	if err != nil {
		return nil, &domain.ExtractionError{URL: y.listingURL, Stage: domain.StageList, Err: fmt.Errorf("%w: %w", domain.ErrNavigation, err)}
	}

	drafts := make([]domain.Draft, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		draft := domain.Draft{
			Title:       y.norm.Clean(item.Title),
			OriginalURL: link,
			Source:      y.source,
			Kind:        domain.KindArticle,
			PublishDate: y.now(),
		}
		if desc := y.norm.Clean(item.Description); desc != "" {
			draft.Summary = []string{desc}
		}
		if item.PublishedParsed != nil {
			draft.PublishDate = *item.PublishedParsed
		}
		if len(item.Categories) > 0 {
			draft.Category = y.norm.Clean(item.Categories[0])
		}
		if u, err := url.Parse(link); err == nil && ynetFlashPath(u) {
			draft.Kind = domain.KindFlash
		}
		drafts = append(drafts, draft)
	}

	y.debug("ynet listing parsed", "items", len(drafts))
	return drafts, nil
}

// ExtractArticle loads the article page and applies the ynet selectors.
func (y *YnetAdapter) ExtractArticle(ctx context.Context, rawURL string) (domain.Draft, error) {
	return y.extract(ctx, rawURL, ynetSelectors, func(u *url.URL, doc *goquery.Document) bool {
		return ynetFlashPath(u) || doc.Find(".flashArticle, [data-flash='true']").Length() > 0
	})
}

func ynetFlashPath(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	return strings.Contains(p, "/news/flash") || strings.Contains(p, "/breaking")
}
