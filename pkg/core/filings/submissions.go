package filings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSubmissionsBaseURL serves the structured submissions API.
const DefaultSubmissionsBaseURL = "https://data.sec.gov"

// submissionsResponse mirrors the data.sec.gov submissions JSON, which stores
// filing attributes as parallel arrays.
type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// WithSubmissionsBaseURL points the locator at an alternate submissions host
// (used in tests).
func (l *Locator) WithSubmissionsBaseURL(base string) *Locator {
	l.submissionsBase = strings.TrimRight(base, "/")
	return l
}

// FindViaSubmissions lists recent filings through the structured submissions
// API instead of the browse-edgar feed. The two paths produce the same
// Reference shape, so callers are agnostic to which one served them.
func (l *Locator) FindViaSubmissions(ctx context.Context, cik, formType string, count int) ([]Reference, error) {
	if count < 1 {
		count = 5
	}
	padded := padCIK(cik)
	if strings.Trim(padded, "0") == "" {
		return nil, fmt.Errorf("invalid CIK %q", cik)
	}

	base := l.submissionsBase
	if base == "" {
		base = DefaultSubmissionsBaseURL
	}
	body, err := l.client.Get(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", base, padded))
	if err != nil {
		return nil, fmt.Errorf("fetch submissions for CIK %s: %w", cik, err)
	}

	var resp submissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse submissions for CIK %s: %w", cik, err)
	}

	recent := resp.Filings.Recent
	// The parallel arrays are not guaranteed equal length; a truncated
	// response must not index past the shortest one.
	n := len(recent.AccessionNumber)
	for _, arr := range [][]string{recent.FilingDate, recent.Form, recent.PrimaryDocument} {
		if len(arr) < n {
			n = len(arr)
		}
	}

	refs := []Reference{}
	for i := 0; i < n; i++ {
		if formType != "" && !strings.EqualFold(recent.Form[i], formType) {
			continue
		}
		accessionNoDashes := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		link := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
			l.baseURL, strings.TrimLeft(padded, "0"), accessionNoDashes, recent.PrimaryDocument[i])

		refs = append(refs, Reference{
			Title:      fmt.Sprintf("%s - %s", recent.Form[i], resp.Name),
			FilingDate: recent.FilingDate[i],
			Link:       link,
		})
		if len(refs) >= count {
			break
		}
	}
	return refs, nil
}

// padCIK strips leading zeros and re-pads to the 10 digits the submissions
// API expects.
func padCIK(cik string) string {
	return fmt.Sprintf("%010s", strings.TrimLeft(strings.TrimSpace(cik), "0"))
}
