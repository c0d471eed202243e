package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		Timeout:       5 * time.Second,
	}
}

func newTestClient(p Policy) *Client {
	return NewClient("test-agent test@example.com", p, zap.NewNop(), WithRateLimit(1000))
}

func TestGet_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	body, err := newTestClient(testPolicy()).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
	if gotUA != "test-agent test@example.com" {
		t.Errorf("User-Agent = %q, identification header missing", gotUA)
	}
}

func TestGet_RetryCeilingOn503(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := testPolicy()
	_, err := newTestClient(p).Get(context.Background(), srv.URL)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", httpErr.Status)
	}
	if got, want := atomic.LoadInt32(&attempts), int32(p.MaxRetries+1); got != want {
		t.Errorf("attempts = %d, want exactly %d", got, want)
	}
}

func TestGet_NoRetryOn404(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(testPolicy()).Get(context.Background(), srv.URL)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 *HTTPError, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (non-transient 4xx must not retry)", got)
	}
}

func TestGet_RetriesOn429ThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestClient(testPolicy()).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestGet_NetworkError(t *testing.T) {
	// Closed server produces a connection-level failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := newTestClient(testPolicy()).Get(context.Background(), addr)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
}

func TestPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		w.Write([]byte(r.PostFormValue("company")))
	}))
	defer srv.Close()

	body, err := newTestClient(testPolicy()).PostForm(context.Background(), srv.URL, url.Values{"company": {"Apple"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "Apple" {
		t.Errorf("body = %q, want %q", body, "Apple")
	}
}

func TestJitter_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		d := jitter(base)
		if d < base || d > time.Duration(float64(base)*1.1) {
			t.Fatalf("jitter(%v) = %v, outside [d, 1.1d]", base, d)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	if got := retryAfter("7"); got != 7*time.Second {
		t.Errorf("retryAfter(7) = %v, want 7s", got)
	}
	if got := retryAfter(""); got != 0 {
		t.Errorf("retryAfter(empty) = %v, want 0", got)
	}
	if got := retryAfter("garbage"); got != 0 {
		t.Errorf("retryAfter(garbage) = %v, want 0", got)
	}
}
