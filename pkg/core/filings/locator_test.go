package filings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"filingsresearch/pkg/core/fetch"
)

const atomFeedBody = `<?xml version="1.0" encoding="ISO-8859-1" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>AAPL filings</title>
  <entry>
    <title>10-K - Annual report</title>
    <updated>2024-11-01T06:01:36-04:00</updated>
    <link rel="alternate" href="https://www.sec.gov/Archives/edgar/data/320193/000032019324000123/0000320193-24-000123-index.htm"/>
  </entry>
  <entry>
    <title>10-K - Annual report</title>
    <updated>2023-11-03T06:01:14-04:00</updated>
    <link rel="alternate" href="https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/0000320193-23-000106-index.htm"/>
  </entry>
  <entry>
    <title>entry without link is skipped</title>
    <updated>2022-10-28T06:01:36-04:00</updated>
  </entry>
</feed>`

// Malformed as XML (unclosed feed tag, bad nesting) but entry blocks are intact.
const brokenFeedBody = `<?xml version="1.0"?>
<feed><unclosed>
<entry>
  <title>10-Q - Quarterly report</title>
  <updated>2024-08-02T06:01:36-04:00</updated>
  <link rel="alternate" href="https://www.sec.gov/Archives/edgar/data/320193/quarterly-index.htm"/>
</entry>
</feed`

const tablePage = `<html><body>
<table>
  <tr><th>Type</th><th>Description</th><th>Date</th></tr>
  <tr><td>10-K</td><td><a href="/Archives/edgar/data/320193/annual-index.htm">Annual report</a></td><td>2024-11-01</td></tr>
  <tr><td>8-K</td><td><a href="/Archives/edgar/data/320193/current-index.htm">Current report</a></td><td>2024-10-15</td></tr>
  <tr><td>too few cells</td><td>x</td></tr>
</table>
</body></html>`

const linkPage = `<html><body>
<p>Nothing structured here.</p>
<a href="/cgi-bin/browse-edgar?action=getcompany">All filing documents</a>
<a href="/unrelated/page.htm">About us</a>
</body></html>`

func newLocator(t *testing.T, handler http.Handler) *Locator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := fetch.NewClient("test-agent test@example.com", fetch.Policy{
		MaxRetries:    0,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		Timeout:       5 * time.Second,
	}, zap.NewNop(), fetch.WithRateLimit(1000))
	return NewLocator(client, zap.NewNop()).WithBaseURL(srv.URL).WithSubmissionsBaseURL(srv.URL)
}

func serveBody(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})
}

func TestFind_AtomFeed(t *testing.T) {
	l := newLocator(t, serveBody(atomFeedBody))

	refs, err := l.Find(context.Background(), "0000320193", "10-K", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2 (linkless entry skipped)", len(refs))
	}
	if refs[0].Title != "10-K - Annual report" {
		t.Errorf("title = %q", refs[0].Title)
	}
	if !strings.Contains(refs[0].Link, "000032019324000123") {
		t.Errorf("link = %q", refs[0].Link)
	}
	if refs[0].FilingDate != "2024-11-01T06:01:36-04:00" {
		t.Errorf("date = %q", refs[0].FilingDate)
	}
}

func TestFind_CountLimit(t *testing.T) {
	l := newLocator(t, serveBody(atomFeedBody))

	refs, err := l.Find(context.Background(), "320193", "10-K", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Errorf("refs = %d, want 1", len(refs))
	}
}

func TestFind_MalformedFeedFallsBackToEntryScan(t *testing.T) {
	l := newLocator(t, serveBody(brokenFeedBody))

	refs, err := l.Find(context.Background(), "320193", "10-Q", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1 via entry scan", len(refs))
	}
	if refs[0].Title != "10-Q - Quarterly report" {
		t.Errorf("title = %q", refs[0].Title)
	}
	if refs[0].Link != "https://www.sec.gov/Archives/edgar/data/320193/quarterly-index.htm" {
		t.Errorf("link = %q", refs[0].Link)
	}
}

func TestFind_TableFallback(t *testing.T) {
	l := newLocator(t, serveBody(tablePage))

	refs, err := l.Find(context.Background(), "320193", "10-K", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1 (8-K row filtered out)", len(refs))
	}
	if refs[0].FilingDate != "2024-11-01" {
		t.Errorf("date = %q", refs[0].FilingDate)
	}
	if !strings.HasPrefix(refs[0].Link, "http") {
		t.Errorf("relative href not rebased: %q", refs[0].Link)
	}
}

func TestFind_LinkScanLastResort(t *testing.T) {
	l := newLocator(t, serveBody(linkPage))

	refs, err := l.Find(context.Background(), "320193", "", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs))
	}
	if refs[0].Title != "All filing documents" {
		t.Errorf("title = %q", refs[0].Title)
	}
}

func TestFind_EmptyResultIsNotError(t *testing.T) {
	// Valid feed with no entries: "no matching filings", not a failure.
	l := newLocator(t, serveBody(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>none</title></feed>`))

	refs, err := l.Find(context.Background(), "320193", "NONEXISTENT-FORM", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("refs = %d, want 0", len(refs))
	}
}

func TestFind_FetchFailureIsError(t *testing.T) {
	l := newLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := l.Find(context.Background(), "320193", "10-K", 5)
	var httpErr *fetch.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *fetch.HTTPError, got %v", err)
	}
}

func TestFind_InvalidCIK(t *testing.T) {
	l := newLocator(t, serveBody(atomFeedBody))
	if _, err := l.Find(context.Background(), "000", "10-K", 5); err == nil {
		t.Error("expected error for all-zero CIK")
	}
}

func TestFindViaSubmissions(t *testing.T) {
	l := newLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "CIK0000320193.json") {
			t.Errorf("path = %q, want zero-padded CIK", r.URL.Path)
		}
		w.Write([]byte(`{
		  "cik": "320193",
		  "name": "Apple Inc.",
		  "filings": {"recent": {
		    "accessionNumber": ["0000320193-24-000123", "0000320193-24-000081"],
		    "filingDate": ["2024-11-01", "2024-08-02"],
		    "form": ["10-K", "10-Q"],
		    "primaryDocument": ["aapl-20240928.htm", "aapl-20240629.htm"]
		  }}
		}`))
	}))

	refs, err := l.FindViaSubmissions(context.Background(), "320193", "10-K", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(refs))
	}
	if !strings.Contains(refs[0].Link, "000032019324000123/aapl-20240928.htm") {
		t.Errorf("link = %q", refs[0].Link)
	}
	if refs[0].FilingDate != "2024-11-01" {
		t.Errorf("date = %q", refs[0].FilingDate)
	}
}

func TestFindViaSubmissions_TruncatedParallelArrays(t *testing.T) {
	l := newLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
		  "cik": "320193",
		  "name": "Apple Inc.",
		  "filings": {"recent": {
		    "accessionNumber": ["0000320193-24-000123", "0000320193-24-000081", "0000320193-24-000050"],
		    "filingDate": ["2024-11-01", "2024-08-02"],
		    "form": ["10-K"],
		    "primaryDocument": ["aapl-20240928.htm"]
		  }}
		}`))
	}))

	refs, err := l.FindViaSubmissions(context.Background(), "320193", "", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs = %d, want only the one complete row", len(refs))
	}
	if !strings.Contains(refs[0].Link, "aapl-20240928.htm") {
		t.Errorf("link = %q", refs[0].Link)
	}
}
