package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceBeforeNewline = regexp.MustCompile(`[ \t\r\f]+\n`)
	spaceAfterNewline  = regexp.MustCompile(`\n[ \t\r\f]+`)
	newlineRun         = regexp.MustCompile(`\n{3,}`)
	whitespaceRun      = regexp.MustCompile(`[ \t\r\f]{3,}`)
)

// CollapseWhitespace normalizes extracted text: whitespace hugging newlines
// is dropped, runs of 3+ newlines collapse to 2, and runs of 3+ other
// whitespace characters collapse to 1. Idempotent.
func CollapseWhitespace(s string) string {
	s = spaceBeforeNewline.ReplaceAllString(s, "\n")
	s = spaceAfterNewline.ReplaceAllString(s, "\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// removeNoise strips elements that must never contribute to extracted text:
// images, scripts, styles and hidden blocks.
func removeNoise(doc *goquery.Document) {
	doc.Find("img, script, style, noscript, [hidden], [style*='display:none'], [style*='display: none']").Remove()
}
