package unwrap

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)

// htmlToText converts an HTML email body to plain text, preserving line
// breaks at block-element boundaries so the forward header block stays one
// header per line.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, head").Remove()

	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, li, tr, blockquote, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()
	text = strings.ReplaceAll(text, " ", " ")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = multiBlankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
