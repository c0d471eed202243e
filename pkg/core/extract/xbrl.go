package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/k3a/html2text"
	"go.uber.org/zap"
)

// Inline-XBRL documents fragment prose across thousands of small tagged
// spans, so direct text extraction is unreliable. The branch order here goes
// from the most faithful source (the complete-submission text bundle) down to
// progressively blunter heuristics over the tagged markup itself.

var (
	documentBlockRe = regexp.MustCompile(`(?s)<DOCUMENT>(.*?)</DOCUMENT>`)
	typeDeclRe      = regexp.MustCompile(`<TYPE>([^\r\n<]+)`)
	textBlockRe     = regexp.MustCompile(`(?s)<TEXT>(.*?)</TEXT>`)

	sectionHeaderRe = regexp.MustCompile(`(?i)^\s*(item\s+\d+[a-z]?\s*[.:]|annual report|management.s discussion|risk factors|financial statements)`)

	accessionDirRe = regexp.MustCompile(`^\d{18}$`)
)

// extractXBRL reduces an inline-XBRL document to text. Returns the text and
// whether the extraction is degraded.
func (e *Extractor) extractXBRL(ctx context.Context, docURL, page string) (string, bool) {
	minChars := minCharsFor(docURL, page)

	// (a) Complete-submission bundle: the plain-text concatenation of all
	// documents, from which the primary document's <TEXT> block is cut.
	if txtURL := completeSubmissionURL(docURL); txtURL != "" {
		if body, err := e.client.Get(ctx, txtURL); err == nil {
			if text := primaryTextFromBundle(string(body)); len(text) >= minChars {
				e.logger.Debug("XBRL extraction served by complete submission bundle",
					zap.String("url", txtURL), zap.Int("chars", len(text)))
				return text, false
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		text := CollapseWhitespace(html2text.HTML2Text(page))
		return text, len(text) < minChars
	}
	removeNoise(doc)
	doc.Find("ix\\:header").Remove()

	// (b) Section headers plus their following siblings.
	if text := CollapseWhitespace(sectionHeaderText(doc)); len(text) >= minChars {
		return text, false
	}

	// (c) Concatenated span text above a minimum length.
	if text := CollapseWhitespace(longSpanText(doc)); len(text) >= minChars {
		return text, false
	}

	// (d) Final fallback: the largest div by text length.
	best := ""
	if divs := doc.Find("div"); divs.Length() > 0 {
		best = CollapseWhitespace(largestByTextLen(divs).Text())
	}
	if best == "" {
		best = CollapseWhitespace(doc.Text())
	}
	return best, len(best) < minChars
}

// completeSubmissionURL derives the complete-submission .txt URL from an
// Archives document URL. The accession directory is the 18-digit segment;
// the bundle is named with the dashed accession number.
func completeSubmissionURL(docURL string) string {
	slash := strings.LastIndex(docURL, "/")
	if slash < 0 {
		return ""
	}
	dir := docURL[:slash]
	seg := dir[strings.LastIndex(dir, "/")+1:]
	if !accessionDirRe.MatchString(seg) {
		return ""
	}
	dashed := fmt.Sprintf("%s-%s-%s", seg[:10], seg[10:12], seg[12:])
	return dir + "/" + dashed + ".txt"
}

// primaryTextFromBundle extracts the primary document's <TEXT> block from a
// complete-submission bundle. The primary document is the first block whose
// declared type is not an exhibit or data attachment.
func primaryTextFromBundle(bundle string) string {
	for _, m := range documentBlockRe.FindAllStringSubmatch(bundle, -1) {
		block := m[1]
		typeMatch := typeDeclRe.FindStringSubmatch(block)
		if typeMatch == nil {
			continue
		}
		declared := strings.ToUpper(strings.TrimSpace(typeMatch[1]))
		if skippableBundleType(declared) {
			continue
		}
		textMatch := textBlockRe.FindStringSubmatch(block)
		if textMatch == nil {
			continue
		}
		return CollapseWhitespace(html2text.HTML2Text(textMatch[1]))
	}
	return ""
}

func skippableBundleType(declared string) bool {
	if strings.HasPrefix(declared, "EX-") || strings.HasPrefix(declared, "GRAPHIC") {
		return true
	}
	switch declared {
	case "XML", "ZIP", "JSON", "EXCEL", "COVER":
		return true
	}
	return false
}

// sectionHeaderText collects the text of elements matching known section
// header phrases together with their following siblings, up to the next
// header.
func sectionHeaderText(doc *goquery.Document) string {
	headers := doc.Find("p, h1, h2, h3, h4, b, strong, span, div, td").FilterFunction(func(i int, s *goquery.Selection) bool {
		own := strings.TrimSpace(s.Text())
		return own != "" && len(own) < 200 && sectionHeaderRe.MatchString(own)
	})
	if headers.Length() == 0 {
		return ""
	}

	const maxChars = 400_000
	var sb strings.Builder
	headers.EachWithBreak(func(i int, s *goquery.Selection) bool {
		sb.WriteString(strings.TrimSpace(s.Text()))
		sb.WriteString("\n\n")
		s.NextUntilSelection(headers).EachWithBreak(func(j int, sib *goquery.Selection) bool {
			sb.WriteString(sib.Text())
			sb.WriteString("\n")
			return sb.Len() < maxChars
		})
		return sb.Len() < maxChars
	})
	return sb.String()
}

// longSpanText concatenates span-level text above a minimum length,
// recovering prose that inline tagging scattered across spans.
func longSpanText(doc *goquery.Document) string {
	const minSpanChars = 40
	var sb strings.Builder
	doc.Find("span").Each(func(i int, s *goquery.Selection) {
		// Only leaf spans: nested spans would duplicate text.
		if s.Children().Length() > 0 {
			return
		}
		t := strings.TrimSpace(s.Text())
		if len(t) >= minSpanChars {
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	})
	return sb.String()
}
