// Package filings lists a registrant's recent SEC filings.
//
// The primary source is the browse-edgar Atom feed. Because EDGAR responses
// vary in shape (well-formed feed, truncated feed, raw HTML), the locator
// applies a tiered fallback: structured feed parse, then entry-substring
// recovery, then HTML table scan, then a generic hyperlink scan. Each tier is
// strictly weaker evidence than the last, so the first tier yielding at least
// one result wins.
package filings

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"filingsresearch/pkg/core/fetch"
)

// DefaultBaseURL is the EDGAR host all relative links are rebased against.
const DefaultBaseURL = "https://www.sec.gov"

// Reference points at one filing's index page. Immutable once produced.
type Reference struct {
	Title      string `json:"title"`
	FilingDate string `json:"filing_date"`
	Link       string `json:"link"`
}

// Locator lists recent filings for a registrant.
type Locator struct {
	client          *fetch.Client
	baseURL         string
	submissionsBase string
	logger          *zap.Logger
}

// NewLocator creates a locator using the given fetch client.
func NewLocator(client *fetch.Client, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{client: client, baseURL: DefaultBaseURL, logger: logger}
}

// WithBaseURL points the locator at an alternate host (used in tests).
func (l *Locator) WithBaseURL(base string) *Locator {
	l.baseURL = strings.TrimRight(base, "/")
	return l
}

// Find returns up to count recent filings for the CIK, optionally filtered by
// form type ("10-K", "10-Q", ...). Zero matching filings is an empty slice
// with a nil error; only a failed fetch returns an error.
func (l *Locator) Find(ctx context.Context, cik, formType string, count int) ([]Reference, error) {
	if count < 1 {
		count = 5
	}
	normalized := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if normalized == "" {
		return nil, fmt.Errorf("invalid CIK %q", cik)
	}

	feedURL := fmt.Sprintf("%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=%s&count=%d&output=atom",
		l.baseURL, url.QueryEscape(normalized), url.QueryEscape(formType), count)

	body, err := l.client.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch filings feed for CIK %s: %w", cik, err)
	}

	page := string(body)

	tiers := []struct {
		name  string
		parse func() []Reference
	}{
		{"atom feed", func() []Reference { return parseAtomFeed(body) }},
		{"entry scan", func() []Reference { return scanEntrySubstrings(page) }},
		{"table scan", func() []Reference { return l.scanTables(page, formType) }},
		{"link scan", func() []Reference { return l.scanLinks(page, formType) }},
	}

	for _, tier := range tiers {
		refs := tier.parse()
		if len(refs) == 0 {
			continue
		}
		l.logger.Debug("filings located",
			zap.String("cik", normalized),
			zap.String("tier", tier.name),
			zap.Int("count", len(refs)))
		if len(refs) > count {
			refs = refs[:count]
		}
		return refs, nil
	}

	return []Reference{}, nil
}

// atomFeed mirrors the browse-edgar Atom response shape.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Updated string `xml:"updated"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

// parseAtomFeed is the tier-1 structured parse. Entries without a resolvable
// link are skipped.
func parseAtomFeed(body []byte) []Reference {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil
	}
	refs := []Reference{}
	for _, e := range feed.Entries {
		if e.Link.Href == "" {
			continue
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = "Unknown"
		}
		date := strings.TrimSpace(e.Updated)
		if date == "" {
			date = "Unknown"
		}
		refs = append(refs, Reference{Title: title, FilingDate: date, Link: e.Link.Href})
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}

var (
	entryTitleRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	entryUpdatedRe = regexp.MustCompile(`(?is)<updated[^>]*>(.*?)</updated>`)
	entryHrefRe    = regexp.MustCompile(`(?is)<link[^>]*href="([^"]+)"`)
)

// scanEntrySubstrings is the tier-2 recovery pass for responses that are not
// well-formed XML but still contain <entry> blocks. Bracket matching keeps it
// independent of the XML parser.
func scanEntrySubstrings(page string) []Reference {
	refs := []Reference{}
	rest := page
	for {
		start := strings.Index(rest, "<entry>")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "</entry>")
		var block string
		if end < 0 {
			block = rest[start:]
			rest = ""
		} else {
			block = rest[start : start+end]
			rest = rest[start+end+len("</entry>"):]
		}

		href := firstGroup(entryHrefRe, block)
		if href == "" {
			if rest == "" {
				break
			}
			continue
		}
		title := firstGroup(entryTitleRe, block)
		if title == "" {
			title = "Unknown"
		}
		date := firstGroup(entryUpdatedRe, block)
		if date == "" {
			date = "Unknown"
		}
		refs = append(refs, Reference{Title: strings.TrimSpace(title), FilingDate: strings.TrimSpace(date), Link: href})
		if rest == "" {
			break
		}
	}
	return refs
}

// scanTables is the tier-3 pass over HTML tables: rows with at least three
// cells and a hyperlink, first cell matched against the form type.
func (l *Locator) scanTables(page, formType string) []Reference {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	filter := strings.ToLower(strings.TrimSpace(formType))
	refs := []Reference{}

	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		link := row.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		first := strings.TrimSpace(cells.First().Text())
		if filter != "" && !strings.Contains(strings.ToLower(first), filter) {
			return
		}
		date := findDateCell(cells)
		title := first
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		refs = append(refs, Reference{
			Title:      title,
			FilingDate: date,
			Link:       l.absolute(href),
		})
	})
	return refs
}

var isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

func findDateCell(cells *goquery.Selection) string {
	date := "Unknown"
	cells.EachWithBreak(func(i int, c *goquery.Selection) bool {
		if m := isoDateRe.FindString(c.Text()); m != "" {
			date = m
			return false
		}
		return true
	})
	return date
}

// scanLinks is the tier-4 last resort: any hyperlink whose visible text or
// href mentions the form type or generic filing words.
func (l *Locator) scanLinks(page, formType string) []Reference {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	needles := []string{"filing", "document"}
	if f := strings.ToLower(strings.TrimSpace(formType)); f != "" {
		needles = append([]string{f}, needles...)
	}

	refs := []Reference{}
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		hay := strings.ToLower(text + " " + href)
		for _, needle := range needles {
			if strings.Contains(hay, needle) {
				abs := l.absolute(href)
				if seen[abs] {
					return
				}
				seen[abs] = true
				title := text
				if title == "" {
					title = href
				}
				refs = append(refs, Reference{Title: title, FilingDate: "Unknown", Link: abs})
				return
			}
		}
	})
	return refs
}

// absolute rebases a relative href against the EDGAR host.
func (l *Locator) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return l.baseURL + href
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return ""
}
