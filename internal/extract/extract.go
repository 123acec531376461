// Package extract parses gazette listing markup into candidate records
// using cascading selector strategies. The site has shipped several layout
// variants over the years, so selectors are kept as data: new variants are
// added to a cascade, never as new control flow.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alnheet/SaGovLaws/internal/gazette"
	"github.com/alnheet/SaGovLaws/internal/identity"
)

// DefaultMinTitleLength rejects items whose title is shorter than this many
// runes; such fragments are navigation chrome, not articles.
const DefaultMinTitleLength = 5

// containerSelectors locate the repeating item element. The first selector
// that yields at least one match is used for the whole page; mixing
// patterns within one page double-counts items on layouts that match more
// than one.
var containerSelectors = []string{
	".article-item",
	".document-item",
	".item-body",
	".news-item",
	".post-item",
	"article",
	".card",
}

var (
	titleSelectors = []string{".item-title", "h2", "h3", ".title", ".news-title"}
	dateSelectors  = []string{".item-date", ".date", ".post-date", "time", ".news-date", ".published-date"}
	linkSelectors  = []string{`a[href*="?p="]`, `a[href*="details"]`, "a.item-link", "h2 a", "h3 a", "a"}
	pdfSelectors   = []string{`a[href$=".pdf"]`, `a[href*=".pdf"]`, ".pdf-link"}
	tagSelectors   = []string{".tags a", ".tag-list a", ".tag", ".item-category", ".category"}
	dataIDAttrs    = []string{"data-id", "data-article-id"}
)

// Extractor turns one page of markup into candidate records.
type Extractor struct {
	minTitleLength int
}

// New builds an Extractor. minTitleLength <= 0 selects the default.
func New(minTitleLength int) *Extractor {
	if minTitleLength <= 0 {
		minTitleLength = DefaultMinTitleLength
	}
	return &Extractor{minTitleLength: minTitleLength}
}

// Extract returns candidates in DOM order (newest first, per site
// convention). Items missing a derivable identifier or an adequate title
// are skipped. Only a failure to parse the markup itself is an error.
func (e *Extractor) Extract(markup string, pageURL string) ([]gazette.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing markup: %w", err)
	}

	items := findItems(doc)
	if items == nil {
		return nil, nil
	}

	base, _ := url.Parse(pageURL)

	var out []gazette.Candidate
	items.Each(func(_ int, item *goquery.Selection) {
		if c, ok := e.extractItem(item, base); ok {
			out = append(out, c)
		}
	})
	return out, nil
}

func findItems(doc *goquery.Document) *goquery.Selection {
	for _, selector := range containerSelectors {
		if items := doc.Find(selector); items.Length() > 0 {
			return items
		}
	}
	return nil
}

func (e *Extractor) extractItem(item *goquery.Selection, base *url.URL) (gazette.Candidate, bool) {
	title := firstText(item, titleSelectors)
	if title == "" {
		title = strings.TrimSpace(item.Find("a").First().Text())
	}
	if len([]rune(title)) < e.minTitleLength {
		return gazette.Candidate{}, false
	}

	detailURL := firstHref(item, linkSelectors)
	originalID := identity.Resolve(detailURL, firstAttr(item, dataIDAttrs), title)
	if originalID == "" {
		return gazette.Candidate{}, false
	}

	return gazette.Candidate{
		OriginalID:     originalID,
		Title:          title,
		URL:            resolveURL(base, detailURL),
		PublishDateRaw: firstText(item, dateSelectors),
		PDFURL:         resolveURL(base, firstHref(item, pdfSelectors)),
		Tags:           itemTags(item),
	}, true
}

// itemTags collects every distinct tag or category label from the first
// selector in the cascade that matches, in DOM order.
func itemTags(item *goquery.Selection) []string {
	for _, selector := range tagSelectors {
		matches := item.Find(selector)
		if matches.Length() == 0 {
			continue
		}
		seen := make(map[string]struct{}, matches.Length())
		var tags []string
		matches.Each(func(_ int, s *goquery.Selection) {
			tag := strings.TrimSpace(s.Text())
			if tag == "" {
				return
			}
			if _, dup := seen[tag]; dup {
				return
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		})
		if len(tags) > 0 {
			return tags
		}
	}
	return nil
}

// firstText applies a selector cascade, short-circuiting on the first
// non-empty trimmed text.
func firstText(item *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(item.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstHref(item *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if href, ok := item.Find(selector).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			return strings.TrimSpace(href)
		}
	}
	return ""
}

func firstAttr(item *goquery.Selection, attrs []string) string {
	for _, attr := range attrs {
		if v, ok := item.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
