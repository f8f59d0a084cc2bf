// Package config loads, validates, and persists the SDK configuration.
// Values come from an encrypted vault file, from TL_* environment variables,
// or both; the environment always wins. A validated Config is never mutated
// in place: reload and update build a new value and swap it atomically.
package config

import (
	"errors"
	"net/url"
	"time"
)

// Environment selects which TransactLab platform the SDK talks to.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Default base URLs per environment, used when baseUrl is not set explicitly.
const (
	SandboxBaseURL    = "https://sandbox.transactlab.dev"
	ProductionBaseURL = "https://api.transactlab.dev"
)

// Policy defaults applied when neither vault nor environment set a value
const (
	DefaultMaxAttempts = 3
	DefaultBackoffMs   = 500
	DefaultTimeoutMs   = 30000
	DefaultTTLSeconds  = 600
)

// Validation bounds for the retry and timeout policy
const (
	minMaxAttempts = 1
	maxMaxAttempts = 10
	minBackoffMs   = 100
	maxBackoffMs   = 10000
	minTimeoutMs   = 1000
	maxTimeoutMs   = 300000
)

// URLConfig holds the redirect and callback targets sent with checkout
// requests. Frontend is optional and only used to synthesize checkout URLs.
type URLConfig struct {
	Success  string `json:"success"`
	Cancel   string `json:"cancel"`
	Callback string `json:"callback"`
	Frontend string `json:"frontend,omitempty"`
}

// RetryConfig bounds the HTTP retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, the first attempt included.
	MaxAttempts int `json:"maxAttempts"`
	// BackoffMs is the base delay; the delay before attempt n+1 is
	// BackoffMs * 2^(n-1).
	BackoffMs int `json:"backoffMs"`
}

// IdempotencyConfig controls response caching for keyed requests.
type IdempotencyConfig struct {
	Enabled    bool `json:"enabled"`
	TTLSeconds int  `json:"ttlSeconds"`
}

// Config is the single source of truth for SDK behavior: credentials,
// endpoints, and the retry/timeout/idempotency policy.
type Config struct {
	// APIKey authenticates every outbound call via the x-sandbox-secret header.
	APIKey string `json:"apiKey"`
	// WebhookSecret is the HMAC key for verifying inbound webhook payloads.
	WebhookSecret string            `json:"webhookSecret"`
	URLs          URLConfig         `json:"urls"`
	Environment   Environment       `json:"environment"`
	BaseURL       string            `json:"baseUrl"`
	Retries       RetryConfig       `json:"retries"`
	TimeoutMs     int               `json:"timeout"`
	Idempotency   IdempotencyConfig `json:"idempotency"`
}

// Default returns a Config carrying the sandbox defaults. Credentials and
// redirect URLs still have to come from the vault or the environment.
func Default() *Config {
	c := newBase()
	c.applyDefaults()
	return c
}

// newBase is the zero starting point for merging; only the fields whose Go
// zero value cannot express "unset" are pre-filled.
func newBase() *Config {
	return &Config{
		Idempotency: IdempotencyConfig{Enabled: true},
	}
}

// applyDefaults fills any field still unset after vault and environment
// merging. BaseURL follows Environment, so it must run after overrides.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvSandbox
	}
	if c.BaseURL == "" {
		if c.Environment == EnvProduction {
			c.BaseURL = ProductionBaseURL
		} else {
			c.BaseURL = SandboxBaseURL
		}
	}
	if c.Retries.MaxAttempts == 0 {
		c.Retries.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retries.BackoffMs == 0 {
		c.Retries.BackoffMs = DefaultBackoffMs
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.Idempotency.TTLSeconds == 0 {
		c.Idempotency.TTLSeconds = DefaultTTLSeconds
	}
}

// Validate checks every rule and reports all violations at once, wrapped in
// an Error with code ErrCodeInvalid.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.WebhookSecret == "" {
		errs = append(errs, ErrMissingWebhookSecret)
	}
	if !validURL(c.URLs.Success) {
		errs = append(errs, ErrBadSuccessURL)
	}
	if !validURL(c.URLs.Cancel) {
		errs = append(errs, ErrBadCancelURL)
	}
	if !validURL(c.URLs.Callback) {
		errs = append(errs, ErrBadCallbackURL)
	}
	if c.URLs.Frontend != "" && !validURL(c.URLs.Frontend) {
		errs = append(errs, ErrBadFrontendURL)
	}
	if !validURL(c.BaseURL) {
		errs = append(errs, ErrBadBaseURL)
	}
	if c.Environment != EnvSandbox && c.Environment != EnvProduction {
		errs = append(errs, ErrBadEnvironment)
	}
	if c.Retries.MaxAttempts < minMaxAttempts || c.Retries.MaxAttempts > maxMaxAttempts {
		errs = append(errs, ErrBadMaxAttempts)
	}
	if c.Retries.BackoffMs < minBackoffMs || c.Retries.BackoffMs > maxBackoffMs {
		errs = append(errs, ErrBadBackoffMs)
	}
	if c.TimeoutMs < minTimeoutMs || c.TimeoutMs > maxTimeoutMs {
		errs = append(errs, ErrBadTimeoutMs)
	}
	if c.Idempotency.Enabled && c.Idempotency.TTLSeconds < 1 {
		errs = append(errs, ErrBadTTLSeconds)
	}
	if len(errs) > 0 {
		return &Error{Code: ErrCodeInvalid, Message: "invalid configuration", Err: errors.Join(errs...)}
	}
	return nil
}

// Clone returns an independent copy safe to mutate before re-validation.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Backoff returns the base retry delay as a duration.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Retries.BackoffMs) * time.Millisecond
}

// IdempotencyTTL returns the cache lifetime as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Idempotency.TTLSeconds) * time.Second
}

// validURL accepts absolute URLs only; a bare host or path does not qualify.
func validURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
