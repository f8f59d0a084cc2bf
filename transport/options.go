package transport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the platform base URL relative paths are joined onto.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAPIKey sets the credential sent as the x-sandbox-secret header.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithTimeout sets the per-attempt wall-clock timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetryPolicy sets the total attempt budget and the base backoff delay.
func WithRetryPolicy(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithHTTPClient replaces the underlying http.Client, e.g. for custom
// transports or proxies. The per-attempt timeout still applies on top.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithIdempotencyStore replaces the default in-memory cache, e.g. with a
// SQLiteStore for persistence across restarts.
func WithIdempotencyStore(store Store) Option {
	return func(c *Client) {
		if store != nil {
			c.store = store
		}
	}
}

// WithIdempotencyTTL sets how long cached responses stay valid.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithIdempotencyEnabled toggles response caching for keyed requests.
func WithIdempotencyEnabled(enabled bool) Option {
	return func(c *Client) {
		c.cacheEnabled = enabled
	}
}

// WithSweepThreshold sets the store size that triggers an inline sweep.
func WithSweepThreshold(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sweepThreshold = n
		}
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors created by NewMetrics.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}
