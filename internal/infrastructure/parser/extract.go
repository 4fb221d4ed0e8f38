package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/politeness"
	"KiddoNews/internal/ports"
	"KiddoNews/internal/textnorm"
)

// DefaultUserAgent identifies the crawler to the scraped sites.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 KiddoNews/1.0"

var localStampExpr = regexp.MustCompile(`\d{1,2}:\d{2}\s+\d{1,2}/\d{1,2}`)

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Browser    ports.Browser
	Normalizer *textnorm.Normalizer
	Logger     *slog.Logger
	UserAgent  string
	Headers    map[string]string
	AdKeywords []string

	// Interval is the politeness interval; every adapter gets its own gate.
	Interval time.Duration

	// HTTPClient serves feed-based listings; nil builds one bounded by NavigationTimeout.
	HTTPClient *http.Client

	// NavigationTimeout bounds a feed listing fetch; zero leaves it to the caller's context.
	NavigationTimeout time.Duration
	Now               func() time.Time
}

// selectors holds the prioritized selector lists per field. A selector may end in
// "@attr" to read an attribute instead of the text.
type selectors struct {
	Title     []string
	Summary   []string
	Authors   []string
	Body      []string
	Images    []string
	Category  []string
	ISODate   []string
	LocalDate []string
}

type flashDetector func(u *url.URL, doc *goquery.Document) bool

// pageLoader turns a URL into a parsed document, honoring the adapter's gate.
type pageLoader struct {
	browser   ports.Browser
	gate      *politeness.Gate
	userAgent string
	headers   map[string]string
	norm      *textnorm.Normalizer
}

func (l *pageLoader) load(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := l.gate.Acquire(ctx); err != nil {
		return nil, &domain.ExtractionError{URL: rawURL, Stage: domain.StageNavigate, Err: fmt.Errorf("%w: politeness wait: %w", domain.ErrNavigation, err)}
	}

	page, err := l.browser.NewPage(ctx)
	if err != nil {
		return nil, &domain.ExtractionError{URL: rawURL, Stage: domain.StageNavigate, Err: fmt.Errorf("%w: %w", domain.ErrNavigation, err)}
	}
	defer page.Close()

	page.SetUserAgent(l.userAgent)
	if len(l.headers) > 0 {
		page.SetHeaders(l.headers)
	}

	if err := page.Goto(ctx, rawURL); err != nil {
		return nil, &domain.ExtractionError{URL: rawURL, Stage: domain.StageNavigate, Err: err}
	}

	raw, err := page.Content(ctx)
	if err != nil {
		return nil, &domain.ExtractionError{URL: rawURL, Stage: domain.StageParse, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(l.norm.Decode(raw)))
	if err != nil {
		return nil, &domain.ExtractionError{URL: rawURL, Stage: domain.StageParse, Err: err}
	}
	return doc, nil
}

// extractor applies a site's selectors to a loaded page.
type extractor struct {
	loader *pageLoader
	norm   *textnorm.Normalizer
	ads    adFilter
	source string
	now    func() time.Time
	logger *slog.Logger
}

func newExtractor(deps Deps, source string) extractor {
	ua := deps.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	norm := deps.Normalizer
	if norm == nil {
		norm = textnorm.New(deps.Logger, nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	keywords := deps.AdKeywords
	if keywords == nil {
		keywords = DefaultAdKeywords
	}
	return extractor{
		loader: &pageLoader{
			browser:   deps.Browser,
			gate:      politeness.NewGate(deps.Interval),
			userAgent: ua,
			headers:   deps.Headers,
			norm:      norm,
		},
		norm:   norm,
		ads:    newAdFilter(keywords),
		source: source,
		now:    now,
		logger: deps.Logger,
	}
}

func (e extractor) extract(ctx context.Context, rawURL string, sel selectors, isFlash flashDetector) (domain.Draft, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Draft{}, &domain.ExtractionError{URL: rawURL, Stage: domain.StageParse, Err: fmt.Errorf("invalid url: %w", err)}
	}
	if u.Host == "" {
		return domain.Draft{}, &domain.ExtractionError{URL: rawURL, Stage: domain.StageParse, Err: fmt.Errorf("invalid url: missing host")}
	}

	doc, err := e.loader.load(ctx, rawURL)
	if err != nil {
		return domain.Draft{}, err
	}

	draft := domain.Draft{
		OriginalURL: rawURL,
		Source:      e.source,
		Kind:        domain.KindArticle,
	}
	if isFlash != nil && isFlash(u, doc) {
		draft.Kind = domain.KindFlash
	}

	draft.Title = e.firstText(doc, sel.Title)
	draft.Summary = e.allTexts(doc, sel.Summary)
	draft.Author = strings.Join(e.allTexts(doc, sel.Authors), ", ")
	draft.Content = strings.Join(e.paragraphs(doc, sel.Body), "\n\n")
	draft.Images = e.images(doc, sel.Images, u)

	if crumbs := e.allTexts(doc, sel.Category); len(crumbs) > 0 {
		draft.Category = crumbs[0]
		if len(crumbs) > 1 {
			draft.Subcategory = crumbs[1]
		}
	}
	draft.PublishDate = e.publishDate(doc, sel)

	if err := draft.Validate(); err != nil {
		return domain.Draft{}, err
	}
	return draft, nil
}

func splitSelector(s string) (string, string) {
	if i := strings.LastIndex(s, "@"); i > 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func (e extractor) valueOf(node *goquery.Selection, attr string) string {
	if attr == "" {
		return e.norm.Clean(node.Text())
	}
	v, _ := node.Attr(attr)
	return e.norm.Clean(v)
}

// firstText returns the first non-empty value of the first selector that yields one.
func (e extractor) firstText(doc *goquery.Document, sels []string) string {
	for _, s := range sels {
		query, attr := splitSelector(s)
		var found string
		doc.Find(query).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			found = e.valueOf(node, attr)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// allTexts returns the distinct non-empty values of the first selector that yields any.
func (e extractor) allTexts(doc *goquery.Document, sels []string) []string {
	for _, s := range sels {
		query, attr := splitSelector(s)
		var out []string
		seen := map[string]struct{}{}
		doc.Find(query).Each(func(_ int, node *goquery.Selection) {
			v := e.valueOf(node, attr)
			if v == "" {
				return
			}
			if _, dup := seen[v]; dup {
				return
			}
			seen[v] = struct{}{}
			out = append(out, v)
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// paragraphs collects body text from the first selector that yields any non-ad paragraph.
func (e extractor) paragraphs(doc *goquery.Document, sels []string) []string {
	for _, s := range sels {
		var out []string
		doc.Find(s).Each(func(_ int, node *goquery.Selection) {
			text := e.norm.Clean(node.Text())
			if text == "" || e.ads.isAd(node, text) {
				return
			}
			out = append(out, text)
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (e extractor) images(doc *goquery.Document, sels []string, base *url.URL) []string {
	for _, s := range sels {
		query, attr := splitSelector(s)
		var out []string
		seen := map[string]struct{}{}
		doc.Find(query).Each(func(_ int, node *goquery.Selection) {
			var src string
			if attr != "" {
				src, _ = node.Attr(attr)
			}
			if src == "" {
				src, _ = node.Attr("data-src")
			}
			src = strings.TrimSpace(src)
			if src == "" || strings.HasPrefix(src, "data:") {
				return
			}
			abs := resolve(base, src)
			if _, dup := seen[abs]; dup {
				return
			}
			seen[abs] = struct{}{}
			out = append(out, abs)
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// publishDate prefers machine-readable timestamps and falls back to "HH:MM DD/MM" bylines.
func (e extractor) publishDate(doc *goquery.Document, sel selectors) time.Time {
	for _, s := range sel.ISODate {
		query, attr := splitSelector(s)
		raw := strings.TrimSpace(e.valueOf(doc.Find(query).First(), attr))
		if raw == "" {
			continue
		}
		if t, err := e.norm.ParseTimestamp(raw); err == nil {
			return t
		}
	}

	now := e.now()
	if stamp := localStampExpr.FindString(e.firstText(doc, sel.LocalDate)); stamp != "" {
		t := e.norm.ParseLocalDateTime(stamp, now.Year())
		// A December byline read in early January belongs to the previous year.
		if t.After(now.Add(24 * time.Hour)) {
			t = t.AddDate(-1, 0, 0)
		}
		return t
	}
	return now
}

func resolve(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

func (e extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
