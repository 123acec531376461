package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultExcerptLength caps the derived excerpt, in runes.
const DefaultExcerptLength = 200

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeHTML removes script, iframe, object, embed and form elements and
// strips on* event-handler attributes from everything that survives. All
// other markup is preserved as-is.
func SanitizeHTML(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	doc.Find("script, iframe, object, embed, form").Remove()

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			kept := node.Attr[:0]
			for _, attr := range node.Attr {
				if !strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					kept = append(kept, attr)
				}
			}
			node.Attr = kept
		}
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Html()
	}
	return body.Html()
}

// PlainText flattens markup to whitespace-normalized text for search.
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return squeeze(doc.Text())
}

// Excerpt truncates plain text to at most maxLength runes, appending an
// ellipsis when content was cut. maxLength <= 0 selects the default.
func Excerpt(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultExcerptLength
	}
	cleaned := []rune(squeeze(text))
	if len(cleaned) <= maxLength {
		return string(cleaned)
	}
	return string(cleaned[:maxLength-3]) + "..."
}

func squeeze(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
