// Package document locates the primary human-readable file within a filing's
// index page. A filing submission bundles dozens of sibling files (exhibits,
// XBRL instances, schedules, graphics); the resolver applies an ordered
// priority cascade over the index page's file table, falling back to weaker
// heuristics only when stronger evidence is absent, so that a best-effort
// answer always exists.
package document

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrNoDocument reports that no content-bearing link exists on the index
// page. Callers degrade to extracting the index page's own text.
var ErrNoDocument = errors.New("no content-bearing document link found on index page")

// Kind classifies an index-page row.
type Kind int

const (
	KindUnknown Kind = iota
	KindPrimary
	KindExhibit
	KindXBRL
)

// Candidate is one row of an index page's file table. Transient: it exists
// only during a single resolution pass.
type Candidate struct {
	Name        string // displayed file name
	Description string
	TypeCol     string // the form-type column, when the table has one
	Href        string // absolute URL
	Kind        Kind
}

// Resolver picks the primary document out of an index page.
type Resolver struct {
	patterns *PatternTable
	logger   *zap.Logger
}

// NewResolver creates a resolver with the embedded filer-pattern table.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{patterns: DefaultPatternTable(), logger: logger}
}

// WithPatternTable swaps in a custom filer-convention table.
func (r *Resolver) WithPatternTable(t *PatternTable) *Resolver {
	r.patterns = t
	return r
}

var (
	exhibitNameRe = regexp.MustCompile(`^ex[-_0-9]`)
	xbrlNameRe    = regexp.MustCompile(`^r\d+\.html?$|\.xml$|_htm\.xml$|\.xsd$`)
	htmExtRe      = regexp.MustCompile(`\.html?$`)
)

// rule is one tier of the cascade: a predicate over a candidate given the
// requested form code. Rules are evaluated in order and the first candidate
// matching the earliest rule wins. Exhibit rows are only eligible for tiers
// that opt in.
type rule struct {
	name          string
	match         func(c Candidate, f formSpec) bool
	allowExhibits bool
}

type formSpec struct {
	raw     string // "10-K"
	lower   string // "10-k"
	compact string // "10k"
	table   *PatternTable
}

var cascade = []rule{
	{"exact-type-match", func(c Candidate, f formSpec) bool {
		if f.lower == "" || !htmExt(c.Name) {
			return false
		}
		t := strings.ToLower(strings.TrimSpace(c.TypeCol))
		return t == f.lower || t == f.compact
	}, false},
	{"filer-pattern", func(c Candidate, f formSpec) bool {
		return f.table != nil && f.table.Matches(strings.ToLower(c.Name), f.raw)
	}, false},
	{"generic-form-name", func(c Candidate, f formSpec) bool {
		if f.lower == "" {
			return false
		}
		name := strings.ToLower(c.Name)
		for _, want := range []string{
			f.lower + ".htm", f.lower + ".html",
			"form" + f.lower + ".htm", "form" + f.lower + ".html",
			f.compact + ".htm", f.compact + ".html",
			"form" + f.compact + ".htm", "form" + f.compact + ".html",
		} {
			if name == want {
				return true
			}
		}
		return false
	}, false},
	{"description-match", func(c Candidate, f formSpec) bool {
		desc := strings.ToLower(c.Description)
		if strings.Contains(desc, "exhibit") || strings.Contains(desc, "complete submission") {
			return false
		}
		if f.lower != "" && strings.Contains(desc, f.lower) {
			return true
		}
		return strings.Contains(desc, "annual report")
	}, false},
	{"complete-submission", func(c Candidate, f formSpec) bool {
		hay := strings.ToLower(c.Description + " " + c.TypeCol)
		return strings.Contains(hay, "complete submission")
	}, false},
	{"any-htm", func(c Candidate, f formSpec) bool {
		return htmExt(c.Name)
	}, false},
	{"any-file", func(c Candidate, f formSpec) bool {
		return c.Href != ""
	}, false},
	// Last resort: same predicate as any-file, but exhibit rows become
	// eligible. An exhibit wins only when it is literally the only link.
	{"any-link", func(c Candidate, f formSpec) bool {
		return c.Href != ""
	}, true},
}

// PrimaryDocumentURL resolves the primary document of an index page that has
// already been fetched. indexURL anchors relative hrefs; formHint is the
// requested form code ("10-K") when known.
func (r *Resolver) PrimaryDocumentURL(indexHTML, indexURL, formHint string) (string, error) {
	candidates := r.ParseCandidates(indexHTML, indexURL)
	if len(candidates) == 0 {
		candidates = r.scanAllLinks(indexHTML, indexURL)
	}
	if len(candidates) == 0 {
		return "", ErrNoDocument
	}

	f := formSpec{
		raw:     formHint,
		lower:   strings.ToLower(strings.TrimSpace(formHint)),
		compact: strings.ReplaceAll(strings.ToLower(strings.TrimSpace(formHint)), "-", ""),
		table:   r.patterns,
	}

	for _, tier := range cascade {
		for _, c := range candidates {
			if c.Href == "" {
				continue
			}
			if c.Kind == KindExhibit && !tier.allowExhibits {
				continue
			}
			if tier.match(c, f) {
				r.logger.Debug("primary document resolved",
					zap.String("rule", tier.name),
					zap.String("name", c.Name),
					zap.String("url", c.Href))
				return UnwrapInlineViewer(c.Href), nil
			}
		}
	}

	return "", ErrNoDocument
}

// ParseCandidates extracts file-table rows from an index page. EDGAR index
// tables carry Seq | Description | Document | Type | Size columns, but the
// parse tolerates reduced layouts as long as a row links to a file.
func (r *Resolver) ParseCandidates(indexHTML, indexURL string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(indexHTML))
	if err != nil {
		return nil
	}

	base, _ := url.Parse(indexURL)

	var candidates []Candidate
	table := doc.Find("table.tableFile")
	if table.Length() == 0 {
		table = doc.Find("table")
	}

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		link := row.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}

		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		c := Candidate{Href: resolveHref(base, href)}
		c.Name = strings.TrimSpace(link.Text())
		if c.Name == "" {
			c.Name = fileNameFromHref(href)
		}
		// Column layout when present: 0=seq 1=description 2=document 3=type.
		if cells.Length() >= 4 {
			c.Description = strings.TrimSpace(cells.Eq(1).Text())
			c.TypeCol = strings.TrimSpace(cells.Eq(3).Text())
		} else {
			c.Description = strings.TrimSpace(cells.Eq(0).Text())
		}
		c.Kind = inferKind(c)
		candidates = append(candidates, c)
	})

	return candidates
}

// scanAllLinks handles index pages without the expected row/column structure
// by treating every hyperlink as a candidate.
func (r *Resolver) scanAllLinks(indexHTML, indexURL string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(indexHTML))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(indexURL)

	var candidates []Candidate
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		c := Candidate{
			Href:        resolveHref(base, href),
			Name:        fileNameFromHref(href),
			Description: strings.TrimSpace(a.Text()),
		}
		c.Kind = inferKind(c)
		candidates = append(candidates, c)
	})
	return candidates
}

func inferKind(c Candidate) Kind {
	name := strings.ToLower(c.Name)
	desc := strings.ToLower(c.Description)
	typ := strings.ToLower(c.TypeCol)

	switch {
	case strings.Contains(desc, "exhibit") || strings.Contains(typ, "ex-") || exhibitNameRe.MatchString(name):
		return KindExhibit
	case xbrlNameRe.MatchString(name) || strings.Contains(desc, "xbrl") || strings.Contains(typ, "xbrl"):
		return KindXBRL
	case htmExt(name):
		return KindPrimary
	default:
		return KindUnknown
	}
}

func htmExt(name string) bool {
	return htmExtRe.MatchString(strings.ToLower(strings.TrimSpace(name)))
}

func fileNameFromHref(href string) string {
	href = strings.SplitN(href, "?", 2)[0]
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// UnwrapInlineViewer converts an inline-XBRL viewer URL of the form
// /ix?doc=/Archives/... into the nested document URL. Any other URL passes
// through unchanged.
func UnwrapInlineViewer(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if !strings.HasSuffix(u.Path, "/ix") && u.Path != "ix" {
		return rawURL
	}
	doc := u.Query().Get("doc")
	if doc == "" {
		return rawURL
	}
	nested, err := url.Parse(doc)
	if err != nil {
		return rawURL
	}
	return u.ResolveReference(nested).String()
}
