// Package cik resolves free-text company names and ticker symbols to SEC
// registrant identifiers (Central Index Keys).
//
// Two upstream sources are used: the cgi-bin CIK lookup tool, which answers
// a form POST with a pre-formatted text listing, and the company_tickers.json
// mapping file for exact ticker matches.
package cik

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"filingsresearch/pkg/core/fetch"
)

const (
	DefaultBaseURL    = "https://www.sec.gov"
	lookupPath        = "/cgi-bin/cik_lookup"
	companyTickersURL = "https://www.sec.gov/files/company_tickers.json"
)

// The lookup tool answers with lines of "<10-digit CIK><whitespace><name>".
// The 10-digit identifier and the split point are a format contract with the
// SEC and must not be loosened.
var cikLineRe = regexp.MustCompile(`(\d{10})\s+(.+)$`)

// Registrant is one match from the CIK lookup tool.
type Registrant struct {
	CIK     string `json:"CIK"`
	Company string `json:"Company"`
	Link    string `json:"Link"`
}

// Resolver maps company names and tickers to CIKs.
type Resolver struct {
	client  *fetch.Client
	baseURL string
	logger  *zap.Logger

	tickerMu    sync.RWMutex
	tickerCache map[string]string // ticker -> zero-padded CIK
}

// NewResolver creates a resolver using the given fetch client.
func NewResolver(client *fetch.Client, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, baseURL: DefaultBaseURL, logger: logger}
}

// WithBaseURL points the resolver at an alternate host (used in tests).
func (r *Resolver) WithBaseURL(base string) *Resolver {
	r.baseURL = strings.TrimRight(base, "/")
	return r
}

// FindRegistrant looks up a company name or ticker via the SEC CIK lookup
// tool. It returns an empty slice when the tool reports no matches, and a
// fetch-layer error when the request itself fails; callers that need the
// original "silent empty" presentation flatten the error themselves.
func (r *Resolver) FindRegistrant(ctx context.Context, nameOrTicker string) ([]Registrant, error) {
	query := strings.TrimSpace(nameOrTicker)
	if query == "" {
		return []Registrant{}, nil
	}

	body, err := r.client.PostForm(ctx, r.baseURL+lookupPath, url.Values{"company": {query}})
	if err != nil {
		return nil, fmt.Errorf("CIK lookup for %q: %w", query, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return []Registrant{}, nil
	}

	if strings.Contains(doc.Text(), "No matching companies") {
		return []Registrant{}, nil
	}

	// Results arrive inside one or more <pre> blocks.
	var all strings.Builder
	doc.Find("pre").Each(func(i int, s *goquery.Selection) {
		all.WriteString(s.Text())
		all.WriteString("\n")
	})

	results := []Registrant{}
	for _, line := range strings.Split(all.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "CIK Code") || strings.Contains(line, "Company Name") {
			continue
		}
		m := cikLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := m[1]
		results = append(results, Registrant{
			CIK:     id,
			Company: strings.TrimSpace(m[2]),
			Link:    fmt.Sprintf("%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s", r.baseURL, strings.TrimLeft(id, "0")),
		})
	}

	r.logger.Debug("CIK lookup complete",
		zap.String("query", query),
		zap.Int("matches", len(results)))
	return results, nil
}

// LookupTicker resolves a ticker symbol to a zero-padded CIK using the SEC's
// company_tickers.json mapping. The full map is fetched once and cached.
func (r *Resolver) LookupTicker(ctx context.Context, ticker string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if normalized == "" {
		return "", fmt.Errorf("empty ticker")
	}

	r.tickerMu.RLock()
	cached, ok := r.tickerCache[normalized]
	loaded := r.tickerCache != nil
	r.tickerMu.RUnlock()
	if ok {
		return cached, nil
	}
	if loaded {
		return "", fmt.Errorf("ticker %s not found in SEC database", ticker)
	}

	if err := r.loadTickerCache(ctx); err != nil {
		return "", err
	}

	r.tickerMu.RLock()
	defer r.tickerMu.RUnlock()
	if cik, ok := r.tickerCache[normalized]; ok {
		return cik, nil
	}
	return "", fmt.Errorf("ticker %s not found in SEC database", ticker)
}

// tickersURL allows tests to redirect the mapping fetch.
func (r *Resolver) tickersURL() string {
	if r.baseURL != DefaultBaseURL {
		return r.baseURL + "/files/company_tickers.json"
	}
	return companyTickersURL
}

func (r *Resolver) loadTickerCache(ctx context.Context) error {
	body, err := r.client.Get(ctx, r.tickersURL())
	if err != nil {
		return fmt.Errorf("fetch company tickers: %w", err)
	}

	// Format: {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
	var mapping map[string]struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &mapping); err != nil {
		return fmt.Errorf("parse company tickers: %w", err)
	}

	cache := make(map[string]string, len(mapping))
	for _, entry := range mapping {
		cache[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
	}

	r.tickerMu.Lock()
	r.tickerCache = cache
	r.tickerMu.Unlock()

	r.logger.Info("loaded ticker map from SEC", zap.Int("tickers", len(cache)))
	return nil
}
