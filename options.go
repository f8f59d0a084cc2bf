package magic

import (
	"log/slog"
	"net/http"

	"github.com/transactlab/magic-go/config"
	"github.com/transactlab/magic-go/transport"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithVaultPath points configuration loading at a vault file other than
// config.DefaultVaultPath.
func WithVaultPath(path string) ClientOption {
	return func(c *Client) {
		c.vaultPath = path
	}
}

// WithVaultPassword supplies the password for opening and sealing the vault.
func WithVaultPassword(password string) ClientOption {
	return func(c *Client) {
		c.vaultPassword = password
	}
}

// WithDotenv loads the named .env files (or ./.env when none are named)
// before reading TL_* variables. Off by default.
func WithDotenv(paths ...string) ClientOption {
	return func(c *Client) {
		c.useDotenv = true
		c.dotenv = paths
	}
}

// WithConfig bypasses vault and environment loading entirely and uses the
// given configuration. It is still defaulted and validated.
func WithConfig(cfg *config.Config) ClientOption {
	return func(c *Client) {
		c.explicit = cfg
	}
}

// WithHTTPClient replaces the underlying *http.Client for outbound calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithIdempotencyStore replaces the in-memory idempotency cache, e.g. with
// a transport.SQLiteStore so cached responses survive restarts.
func WithIdempotencyStore(store transport.Store) ClientOption {
	return func(c *Client) {
		c.idemStore = store
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches transport metrics registered by the host.
func WithMetrics(metrics *transport.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}
