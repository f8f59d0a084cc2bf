// Package transport executes HTTP requests against the TransactLab platform
// with bounded retries, exponential backoff, per-attempt timeouts, and an
// idempotency cache keyed by a deterministic request hash.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Policy defaults, aligned with the config package.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
	DefaultTTL         = 10 * time.Minute
)

// SecretHeader authenticates every request to the sandbox platform.
const SecretHeader = "x-sandbox-secret"

// Request describes one outbound call.
type Request struct {
	Method string
	// Path is joined onto the client's base URL; absolute http(s) URLs pass
	// through untouched.
	Path string
	// Headers are applied before the SDK's own, except the auth header,
	// which is always set last and cannot be dropped.
	Headers map[string]string
	// Body is JSON-marshaled when non-nil.
	Body interface{}
	// IdempotencyKey enables response caching for this request.
	IdempotencyKey string
}

// Client executes requests with bounded retries. Retries run sequentially in
// the caller's goroutine; the only suspension points are network I/O and the
// context-aware backoff sleep.
type Client struct {
	baseURL        string
	apiKey         string
	timeout        time.Duration
	maxAttempts    int
	backoff        time.Duration
	httpClient     *http.Client
	store          Store
	ttl            time.Duration
	cacheEnabled   bool
	sweepThreshold int
	logger         *slog.Logger
	metrics        *Metrics
}

// New creates a Client with the default policy; options override it.
func New(opts ...Option) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		maxAttempts:    DefaultMaxAttempts,
		backoff:        DefaultBackoff,
		httpClient:     &http.Client{},
		store:          NewMemoryStore(),
		ttl:            DefaultTTL,
		cacheEnabled:   true,
		sweepThreshold: DefaultSweepThreshold,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Do executes req. When an idempotency key is present and caching is
// enabled, the cache is consulted first; a hit returns without any network
// call. Only 2xx responses are cached.
func (c *Client) Do(ctx context.Context, req *Request) (json.RawMessage, error) {
	url := c.resolveURL(req.Path)

	useCache := c.cacheEnabled && req.IdempotencyKey != "" && c.store != nil
	if useCache {
		if cached, ok := c.store.Get(ctx, req.IdempotencyKey); ok {
			c.metrics.observeCache(true)
			c.logger.Debug("idempotency cache hit", "method", req.Method, "url", url)
			return cached, nil
		}
		c.metrics.observeCache(false)
	}

	var body []byte
	if req.Body != nil {
		marshaled, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = marshaled
	}

	start := time.Now()
	response, status, err := c.doWithRetry(ctx, req.Method, url, req.Headers, body)
	c.metrics.observeRequest(req.Method, status, time.Since(start))
	if err != nil {
		return nil, err
	}

	if useCache {
		c.store.Set(ctx, req.IdempotencyKey, response, c.ttl)
		if c.store.Size(ctx) > c.sweepThreshold {
			removed := c.store.Sweep(ctx)
			c.logger.Debug("idempotency cache swept", "removed", removed)
		}
	}
	return response, nil
}

// Get issues a GET request to path.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete issues a DELETE request to path.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// doWithRetry runs the attempt loop. Returns the response body, the final
// HTTP status (0 when no response arrived), and the terminal error.
func (c *Client) doWithRetry(ctx context.Context, method, url string, headers map[string]string, body []byte) (json.RawMessage, int, error) {
	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		response, status, err := c.doOnce(ctx, method, url, headers, body)
		if status != 0 {
			lastStatus = status
		}
		if err == nil {
			return response, status, nil
		}
		lastErr = err

		// No backoff after the final attempt; terminal errors surface at once.
		if !retryable(err) || attempt == c.maxAttempts {
			return nil, lastStatus, lastErr
		}

		delay := c.backoff * time.Duration(1<<uint(attempt-1))
		c.metrics.observeRetry(retryReason(err))
		c.logger.Debug("retrying request",
			"method", method, "url", url,
			"attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, lastStatus, ctx.Err()
		}
	}
	return nil, lastStatus, lastErr
}

// doOnce performs a single attempt under its own deadline.
func (c *Client) doOnce(ctx context.Context, method, url string, headers map[string]string, body []byte) (json.RawMessage, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(SecretHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Cancellation of the caller's context is terminal; hitting the
		// per-attempt deadline is a retryable timeout.
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, &TransportError{URL: url, Err: err, Timeout: true}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, 0, &TransportError{URL: url, Err: err, Timeout: true}
		}
		return nil, 0, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: responseBody}
		var parsed map[string]interface{}
		if json.Unmarshal(responseBody, &parsed) == nil {
			httpErr.Parsed = parsed
		}
		return nil, resp.StatusCode, httpErr
	}

	// 204-style empty bodies normalize to an empty object so callers always
	// receive JSON.
	if len(bytes.TrimSpace(responseBody)) == 0 {
		responseBody = []byte("{}")
	}
	if !json.Valid(responseBody) {
		return nil, resp.StatusCode, &PayloadError{
			URL: url,
			Err: errors.New("response body is not valid JSON"),
			Raw: responseBody,
		}
	}
	return responseBody, resp.StatusCode, nil
}

func (c *Client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
