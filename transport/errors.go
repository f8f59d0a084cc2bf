package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError reports a network-level failure: connection refused, DNS,
// resets, or a per-attempt timeout. Always retryable.
type TransportError struct {
	URL     string
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport: request to %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("transport: request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response. Body always carries the raw bytes;
// Parsed is populated when the body decodes as a JSON object.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
	Parsed     map[string]interface{}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("transport: request failed (%d): %s", e.StatusCode, string(e.Body))
}

// Retryable reports whether the retry loop may try again: rate limiting and
// server-side failures only. Any other 4xx is terminal.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// PayloadError reports a 2xx response whose body was not valid JSON. The
// server answered successfully with broken content, which no retry fixes.
type PayloadError struct {
	URL string
	Err error
	Raw []byte
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("transport: malformed response from %s: %v", e.URL, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// retryable is the retry loop's whole decision: a pure function of the error
// type, never of message text.
func retryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return false
}

// retryReason labels the retry trigger for logs and metrics.
func retryReason(err error) string {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout {
			return "timeout"
		}
		return "network"
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return "http_429"
		}
		return "http_5xx"
	}
	return "unknown"
}
