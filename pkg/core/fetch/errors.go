package fetch

import "fmt"

// HTTPError reports a non-2xx response after retries were exhausted
// (or immediately, for non-transient 4xx statuses).
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
}

// NetworkError reports a connection-level failure after retries were exhausted.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError reports a request deadline exceeded after retries were exhausted.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout fetching %s: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
