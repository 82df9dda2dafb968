package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// absolutePrefix is the only test applied to a discovered link.
// Anything else (relative paths, fragments, mailto:, javascript:) is dropped.
const absolutePrefix = "http"

// ExtractLinks returns the href of every anchor element in htmlText whose
// value starts with "http", in document order.
//
// Extraction never fails. The HTML5 parsing algorithm recovers from
// malformed markup, and input it cannot parse yields an empty result.
// Hrefs are returned verbatim: they are neither trimmed nor resolved.
func ExtractLinks(htmlText string) []string {
	root, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return []string{}
	}

	links := make([]string, 0)
	goquery.NewDocumentFromNode(root).Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.HasPrefix(href, absolutePrefix) {
			return
		}
		links = append(links, href)
	})
	return links
}
