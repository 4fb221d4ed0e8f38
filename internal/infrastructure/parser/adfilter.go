package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultAdKeywords mark sponsored paragraphs on Hebrew news sites.
var DefaultAdKeywords = []string{
	"פרסומת",
	"תוכן שיווקי",
	"בשיתוף",
	"ממומן",
	"advertisement",
	"sponsored",
}

var adTokens = map[string]struct{}{
	"ad":        {},
	"ads":       {},
	"banner":    {},
	"promo":     {},
	"sponsored": {},
}

type adFilter struct {
	keywords []string
}

func newAdFilter(keywords []string) adFilter {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return adFilter{keywords: lowered}
}

// isAd matches the paragraph text against the keywords and the class/id of the
// paragraph and its parent against ad-like tokens.
func (f adFilter) isAd(node *goquery.Selection, text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	for _, n := range []*goquery.Selection{node, node.Parent()} {
		if n == nil || n.Length() == 0 {
			continue
		}
		class, _ := n.Attr("class")
		id, _ := n.Attr("id")
		if hasAdToken(class) || hasAdToken(id) {
			return true
		}
	}
	return false
}

// hasAdToken splits a class or id on spaces, dashes and underscores; "header" or
// "shadow" do not count, "ad-slot" and "advertisement" do.
func hasAdToken(name string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	for _, tok := range tokens {
		if _, ok := adTokens[tok]; ok {
			return true
		}
		if strings.HasPrefix(tok, "advert") {
			return true
		}
	}
	return false
}
