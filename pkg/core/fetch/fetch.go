// Package fetch implements the HTTP layer shared by every component of the
// filings research core. All outbound requests carry the identification
// header required by the SEC's access policy, are rate limited below the
// SEC's 10 requests/second guidance, and are retried with exponential
// backoff on transient failures (connection errors, timeouts, 429, 5xx).
package fetch

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Policy controls retry behaviour. The zero value is not usable; use
// DefaultPolicy or construct explicitly.
type Policy struct {
	MaxRetries    int           // retries after the first attempt
	InitialDelay  time.Duration // delay before the first retry
	BackoffFactor float64       // multiplier applied per retry
	Timeout       time.Duration // per-request deadline
}

// DefaultPolicy returns the standard retry policy: 3 retries starting at 1s,
// doubling each attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
		Timeout:       60 * time.Second,
	}
}

// Client is a stateless, concurrency-safe HTTP client for SEC endpoints.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	policy    Policy
	userAgent string
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), int(perSecond))
		}
	}
}

// WithHTTPClient replaces the underlying http.Client (used in tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a fetch client. userAgent must be a non-empty
// identification string; an empty value is a caller error and panics.
func NewClient(userAgent string, policy Policy, logger *zap.Logger, opts ...Option) *Client {
	if userAgent == "" {
		panic("fetch: SEC requests require an identifying User-Agent")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		http:      &http.Client{Timeout: policy.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(8), 8),
		policy:    policy,
		userAgent: userAgent,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and returns the response body. Transient failures are
// retried per the client's policy; the returned error is one of *HTTPError,
// *NetworkError or *TimeoutError once retries are exhausted.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, "", nil)
}

// PostForm submits form values to url and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, form.Encode(), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

func (c *Client) do(ctx context.Context, method, rawURL, body string, headers map[string]string) ([]byte, error) {
	reqID := uuid.New().String()[:8]
	delay := c.policy.InitialDelay

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				zap.String("req_id", reqID),
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-time.After(jitter(delay)):
			case <-ctx.Done():
				return nil, &TimeoutError{URL: rawURL, Err: ctx.Err()}
			}
			delay = time.Duration(float64(delay) * c.policy.BackoffFactor)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TimeoutError{URL: rawURL, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(body))
		if err != nil {
			return nil, &NetworkError{URL: rawURL, Err: err}
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if isTimeout(err) {
				lastErr = &TimeoutError{URL: rawURL, Err: err}
			} else {
				lastErr = &NetworkError{URL: rawURL, Err: err}
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				lastErr = &NetworkError{URL: rawURL, Err: readErr}
				continue
			}
			return respBody, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			if ra := retryAfter(resp.Header.Get("Retry-After")); ra > delay {
				delay = ra
			}
			lastErr = &HTTPError{Status: resp.StatusCode, URL: rawURL}
			continue
		case resp.StatusCode >= 500:
			lastErr = &HTTPError{Status: resp.StatusCode, URL: rawURL}
			continue
		default:
			// Remaining 4xx statuses are non-transient.
			return nil, &HTTPError{Status: resp.StatusCode, URL: rawURL}
		}
	}

	c.logger.Warn("request failed after retries",
		zap.String("req_id", reqID),
		zap.String("url", rawURL),
		zap.Int("retries", c.policy.MaxRetries),
		zap.Error(lastErr))
	return nil, lastErr
}

// jitter stretches a delay by up to +10% so that concurrent callers do not
// resynchronize their retry schedules.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (1.0 + rand.Float64()*0.1))
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// retryAfter parses a Retry-After header value (seconds or HTTP date).
func retryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
