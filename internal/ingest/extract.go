package ingest

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	// minArticleLen is the length a selector hit (and later a whole article)
	// must clear to count as real body text.
	minArticleLen = 200
	// minParagraphLen filters nav/boilerplate fragments in the paragraph
	// fallback.
	minParagraphLen = 20
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace runs to single spaces and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// Extractor pulls clean article text out of heterogeneous publisher markup.
// It tries an ordered selector chain first, then readability, then all
// sufficiently long paragraphs, then the whole page. Best effort only.
type Extractor struct {
	Selectors []string
}

func NewExtractor(selectors []string) *Extractor {
	return &Extractor{Selectors: selectors}
}

// Extract returns the article text of html, or "" when the page has nothing
// usable. pageURL is only a hint for the readability stage.
func (e *Extractor) Extract(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, sel := range e.Selectors {
		text := CleanText(doc.Find(sel).Text())
		if len(text) > minArticleLen {
			return text
		}
	}

	if article, err := readability.FromReader(strings.NewReader(html), parseURLOrEmpty(pageURL)); err == nil {
		if text := CleanText(article.TextContent); len(text) > minArticleLen {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); len(t) > minParagraphLen {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) > 0 {
		return CleanText(strings.Join(paragraphs, "\n\n"))
	}

	return CleanText(doc.Find("body").Text())
}

func parseURLOrEmpty(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
