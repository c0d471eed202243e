// Package extract reduces SEC filing documents to clean prose text.
//
// Filing pages come in several shapes: plain HTML primary documents,
// inline-XBRL documents whose prose is fragmented across thousands of tagged
// spans, inline-viewer wrapper URLs, and index pages that merely list the
// submission's files. The extractor detects the shape after fetching and
// applies format-specific fallback branches, recovering locally from every
// markup surprise so that callers always receive usable text.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/k3a/html2text"
	"go.uber.org/zap"

	"filingsresearch/pkg/core/document"
	"filingsresearch/pkg/core/fetch"
)

const (
	// MinAnnualReportChars is the sufficiency threshold for documents that
	// look like annual reports; shorter extractions are marked degraded.
	MinAnnualReportChars = 5000
	// MinFilingChars is the sufficiency threshold for everything else.
	MinFilingChars = 1000

	// directDocMinBytes gates direct-document detection: pages below this
	// size are treated as index listings.
	directDocMinBytes = 20000
)

// Result is the sole artifact handed to the chunker and external callers.
type Result struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
	Degraded  bool   `json:"is_degraded"`
}

// Extractor fetches documents and reduces them to text.
type Extractor struct {
	client   *fetch.Client
	resolver *document.Resolver
	logger   *zap.Logger
}

// NewExtractor creates an extractor sharing the given fetch client.
func NewExtractor(client *fetch.Client, resolver *document.Resolver, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = document.NewResolver(logger)
	}
	return &Extractor{client: client, resolver: resolver, logger: logger}
}

// ExtractText fetches documentURL (a primary document, an inline-viewer
// wrapper, or a filing index page) and returns its cleaned text.
//
// Shape and markup surprises never escape: they degrade to weaker extraction
// strategies, and as a last resort the result text describes the failure with
// Degraded set. Only network-level failure of the initial fetch is returned
// as an error.
func (e *Extractor) ExtractText(ctx context.Context, documentURL string) (res Result, err error) {
	target := document.UnwrapInlineViewer(documentURL)

	body, err := e.client.Get(ctx, target)
	if err != nil {
		return Result{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction panic recovered", zap.String("url", target), zap.Any("panic", r))
			res = Result{
				Text:      fmt.Sprintf("Error extracting filing text from %s: %v", target, r),
				SourceURL: target,
				Degraded:  true,
			}
			err = nil
		}
	}()

	return e.extractFetched(ctx, target, string(body)), nil
}

// extractFetched routes an already-fetched page through the shape branches.
func (e *Extractor) extractFetched(ctx context.Context, pageURL, page string) Result {
	switch {
	case isInlineXBRL(page):
		text, degraded := e.extractXBRL(ctx, pageURL, page)
		return Result{Text: text, SourceURL: pageURL, Degraded: degraded}

	case isDirectDocument(page):
		text, degraded := e.extractFromHTML(page, minCharsFor(pageURL, page))
		return Result{Text: text, SourceURL: pageURL, Degraded: degraded}

	default:
		return e.extractViaIndex(ctx, pageURL, page)
	}
}

// extractViaIndex treats the fetched page as a filing index: resolve the
// primary document, fetch it, and extract. Every failure along the way
// degrades to the index page's own text.
func (e *Extractor) extractViaIndex(ctx context.Context, indexURL, indexPage string) Result {
	docURL, err := e.resolver.PrimaryDocumentURL(indexPage, indexURL, "")
	if err != nil {
		e.logger.Debug("no primary document on index page, extracting listing text", zap.String("url", indexURL))
		text, _ := e.extractFromHTML(indexPage, 0)
		return Result{Text: text, SourceURL: indexURL, Degraded: true}
	}

	body, err := e.client.Get(ctx, docURL)
	if err != nil {
		e.logger.Warn("primary document fetch failed, degrading to index text",
			zap.String("url", docURL), zap.Error(err))
		text, _ := e.extractFromHTML(indexPage, 0)
		return Result{Text: text, SourceURL: indexURL, Degraded: true}
	}

	page := string(body)
	if isInlineXBRL(page) {
		text, degraded := e.extractXBRL(ctx, docURL, page)
		return Result{Text: text, SourceURL: docURL, Degraded: degraded}
	}

	text, degraded := e.extractFromHTML(page, minCharsFor(docURL, page))
	return Result{Text: text, SourceURL: docURL, Degraded: degraded}
}

// extractFromHTML pulls prose out of a plain HTML document. minChars of 0
// accepts any length without marking the result degraded by size alone.
func (e *Extractor) extractFromHTML(page string, minChars int) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		// Unparseable markup: strip tags wholesale.
		text := CollapseWhitespace(html2text.HTML2Text(page))
		return text, minChars > 0 && len(text) < minChars
	}

	removeNoise(doc)

	text := CollapseWhitespace(selectContent(doc).Text())
	if minChars <= 0 || len(text) >= minChars {
		return text, false
	}

	// Container came up short: retry from the whole page.
	whole := CollapseWhitespace(doc.Text())
	if len(whole) > len(text) {
		text = whole
	}
	if len(text) >= minChars {
		return text, false
	}

	// Still short: append table and preformatted-block text.
	var extra strings.Builder
	doc.Find("table, pre").Each(func(i int, s *goquery.Selection) {
		extra.WriteString(s.Text())
		extra.WriteString("\n")
	})
	if extra.Len() > 0 {
		text = CollapseWhitespace(text + "\n\n" + extra.String())
	}

	return text, len(text) < minChars
}

// selectContent picks the best text-bearing region of a page: a named
// content container when one exists, else the single largest block, else the
// whole document.
func selectContent(doc *goquery.Document) *goquery.Selection {
	named := doc.Find("[id*='filing'], [id*='document'], [id*='content'], " +
		"[class*='filing'], [class*='document'], [class*='content']")
	if named.Length() > 0 {
		best := largestByTextLen(named)
		if len(strings.TrimSpace(best.Text())) >= 200 {
			return best
		}
	}

	divs := doc.Find("div")
	if divs.Length() > 0 {
		best := largestByTextLen(divs)
		if len(strings.TrimSpace(best.Text())) > 0 {
			return best
		}
	}

	return doc.Selection
}

func largestByTextLen(sel *goquery.Selection) *goquery.Selection {
	best := sel.First()
	bestLen := len(best.Text())
	sel.Each(func(i int, s *goquery.Selection) {
		if l := len(s.Text()); l > bestLen {
			best = s
			bestLen = l
		}
	})
	return best
}

var itemHeaderRe = regexp.MustCompile(`(?i)item\s+\d+[a-z]?\s*[.:]`)

// isDirectDocument reports whether a fetched page already is the filing body,
// so document resolution can be skipped entirely.
func isDirectDocument(page string) bool {
	if len(page) < directDocMinBytes {
		return false
	}
	lower := strings.ToLower(page)
	markers := 0
	if itemHeaderRe.MatchString(lower) {
		markers++
	}
	if strings.Contains(lower, "annual report") {
		markers++
	}
	if strings.Contains(lower, "securities and exchange commission") {
		markers++
	}
	return markers >= 2
}

// isInlineXBRL detects inline-XBRL tagging from the document preamble.
func isInlineXBRL(page string) bool {
	head := page
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := strings.ToLower(head)
	if strings.Contains(lower, "xmlns:ix") {
		return true
	}
	return strings.Contains(lower, "<?xml") && strings.Contains(lower, "xbrl")
}

// minCharsFor picks the sufficiency threshold: annual reports warrant the
// higher bar.
func minCharsFor(docURL, page string) int {
	lowerURL := strings.ToLower(docURL)
	if strings.Contains(lowerURL, "10-k") || strings.Contains(lowerURL, "10k") {
		return MinAnnualReportChars
	}
	sample := page
	if len(sample) > 50000 {
		sample = sample[:50000]
	}
	if strings.Contains(strings.ToLower(sample), "annual report") {
		return MinAnnualReportChars
	}
	return MinFilingChars
}
