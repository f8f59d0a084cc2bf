package magic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/transactlab/magic-go/config"
	"github.com/transactlab/magic-go/transport"
	"github.com/transactlab/magic-go/webhook"
)

// Sandbox endpoints, relative to the configured base URL.
const (
	sessionsPath      = "/sandbox/sessions"
	subscriptionsPath = "/sandbox/subscriptions"
	processPathPrefix = "/checkout/process/"
)

// Client is the SDK facade. It owns the configuration store, the retrying
// HTTP transport, and the webhook verifier, and keeps the three consistent
// across configuration reloads.
type Client struct {
	store   *config.Store
	logger  *slog.Logger
	metrics *transport.Metrics

	// construction inputs, set by options
	vaultPath     string
	vaultPassword string
	dotenv        []string
	useDotenv     bool
	explicit      *config.Config
	httpClient    *http.Client
	idemStore     transport.Store
	lookup        config.LookupFunc

	// rebuilt on every config load/update under mu
	mu       sync.RWMutex
	api      *transport.Client
	verifier *webhook.Verifier
}

// New loads and validates configuration, then wires the transport and
// verifier to it. Configuration comes from the vault and TL_* environment
// variables unless WithConfig supplies it directly; any *config.Error here
// is fatal and nothing is constructed.
func New(opts ...ClientOption) (*Client, error) {
	c := &Client{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(c)
	}

	storeOpts := []config.StoreOption{config.WithLogger(c.logger)}
	if c.vaultPath != "" {
		storeOpts = append(storeOpts, config.WithVaultPath(c.vaultPath))
	}
	if c.vaultPassword != "" {
		storeOpts = append(storeOpts, config.WithVaultPassword(c.vaultPassword))
	}
	if c.useDotenv {
		storeOpts = append(storeOpts, config.WithDotenv(c.dotenv...))
	}
	if c.lookup != nil {
		storeOpts = append(storeOpts, config.WithEnvironLookup(c.lookup))
	}
	c.store = config.NewStore(storeOpts...)

	var (
		cfg *config.Config
		err error
	)
	if c.explicit != nil {
		cfg, err = c.store.Replace(c.explicit)
	} else {
		cfg, err = c.store.Load()
	}
	if err != nil {
		return nil, err
	}

	// One cache for the client's lifetime, so cached responses survive
	// configuration updates.
	if c.idemStore == nil {
		c.idemStore = transport.NewMemoryStore()
	}
	c.rebuild(cfg)
	c.logger.Debug("client ready",
		"environment", string(cfg.Environment), "baseUrl", cfg.BaseURL)
	return c, nil
}

// rebuild points the transport and verifier at cfg. In-flight calls keep
// the snapshot they started with.
func (c *Client) rebuild(cfg *config.Config) {
	opts := []transport.Option{
		transport.WithBaseURL(cfg.BaseURL),
		transport.WithAPIKey(cfg.APIKey),
		transport.WithTimeout(cfg.Timeout()),
		transport.WithRetryPolicy(cfg.Retries.MaxAttempts, cfg.Backoff()),
		transport.WithIdempotencyEnabled(cfg.Idempotency.Enabled),
		transport.WithIdempotencyTTL(cfg.IdempotencyTTL()),
		transport.WithIdempotencyStore(c.idemStore),
		transport.WithLogger(c.logger),
	}
	if c.httpClient != nil {
		opts = append(opts, transport.WithHTTPClient(c.httpClient))
	}
	if c.metrics != nil {
		opts = append(opts, transport.WithMetrics(c.metrics))
	}

	c.mu.Lock()
	c.api = transport.New(opts...)
	c.verifier = webhook.NewVerifier(cfg.WebhookSecret, webhook.WithLogger(c.logger))
	c.mu.Unlock()
}

func (c *Client) transportClient() *transport.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api
}

// CreateSession creates a checkout session and returns the platform
// response verbatim. The call is idempotent: equal requests within the
// configured TTL are served from the cache without a network round trip.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (map[string]interface{}, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := c.store.Config()

	body := map[string]interface{}{
		"amount":        MinorUnits(req.Amount, req.Currency),
		"currency":      strings.ToUpper(req.Currency),
		"description":   req.Description,
		"customerEmail": req.CustomerEmail,
		"successUrl":    fallback(req.SuccessURL, cfg.URLs.Success),
		"cancelUrl":     fallback(req.CancelURL, cfg.URLs.Cancel),
		"callbackUrl":   cfg.URLs.Callback,
	}
	if req.CustomerName != "" {
		body["customerName"] = req.CustomerName
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	return c.postIdempotent(ctx, sessionsPath, body)
}

// CreateSubscription creates a subscription against an existing plan, with
// the same idempotent contract as CreateSession.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (map[string]interface{}, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := c.store.Config()

	chargeNow := true
	if req.ChargeNow != nil {
		chargeNow = *req.ChargeNow
	}
	body := map[string]interface{}{
		"planId":        req.PlanID,
		"customerEmail": req.CustomerEmail,
		"chargeNow":     chargeNow,
		"successUrl":    fallback(req.SuccessURL, cfg.URLs.Success),
		"cancelUrl":     fallback(req.CancelURL, cfg.URLs.Cancel),
		"callbackUrl":   cfg.URLs.Callback,
	}
	if req.CustomerName != "" {
		body["customerName"] = req.CustomerName
	}
	if req.TrialDays > 0 {
		body["trialDays"] = req.TrialDays
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	return c.postIdempotent(ctx, subscriptionsPath, body)
}

// ProcessPayment submits payment data against an open session. Unlike the
// create calls it carries no idempotency key: repeated calls are distinct
// payment attempts, and callers wanting replay protection must key at a
// layer above.
func (c *Client) ProcessPayment(ctx context.Context, sessionID string, paymentData map[string]interface{}) (map[string]interface{}, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, newValidationError("sessionId", "sessionId is required")
	}
	if paymentData == nil {
		paymentData = map[string]interface{}{}
	}

	path := processPathPrefix + url.PathEscape(sessionID)
	raw, err := c.transportClient().Post(ctx, path, paymentData)
	if err != nil {
		return nil, err
	}
	return decodeObject(path, raw)
}

// postIdempotent issues a POST whose idempotency key derives from the full
// body, so equal requests within the TTL replay the cached response.
func (c *Client) postIdempotent(ctx context.Context, path string, body map[string]interface{}) (map[string]interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	raw, err := c.transportClient().Do(ctx, &transport.Request{
		Method:         http.MethodPost,
		Path:           path,
		Body:           json.RawMessage(payload),
		IdempotencyKey: transport.DeriveKey(http.MethodPost, path, payload),
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(path, raw)
}

// CheckoutURL synthesizes the hosted checkout page URL for a session from
// the configured frontend URL. Empty when no frontend is configured.
func (c *Client) CheckoutURL(sessionID string) string {
	frontend := strings.TrimSuffix(c.store.Config().URLs.Frontend, "/")
	if frontend == "" || sessionID == "" {
		return ""
	}
	return frontend + "/checkout/" + sessionID
}

// Config returns the current configuration snapshot. Treat it as read-only;
// changes go through UpdateConfig.
func (c *Client) Config() *config.Config {
	return c.store.Config()
}

// UpdateConfig applies a mutation to a clone of the live configuration,
// validates it, and on success re-points the transport and verifier. A
// failed validation changes nothing.
func (c *Client) UpdateConfig(apply func(*config.Config)) error {
	cfg, err := c.store.Update(apply)
	if err != nil {
		return err
	}
	c.rebuild(cfg)
	return nil
}

// Reload rebuilds configuration from the vault and environment, then
// re-points the transport and verifier. On failure the previous
// configuration stays live.
func (c *Client) Reload() error {
	cfg, err := c.store.Reload()
	if err != nil {
		return err
	}
	c.rebuild(cfg)
	return nil
}

// SaveVault seals the current configuration to the vault file.
func (c *Client) SaveVault(password string) error {
	return c.store.Save(password)
}

// Verifier returns the webhook verifier bound to the current webhook secret.
func (c *Client) Verifier() *webhook.Verifier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.verifier
}

func decodeObject(path string, raw json.RawMessage) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &transport.PayloadError{URL: path, Err: err, Raw: []byte(raw)}
	}
	return out, nil
}

func fallback(value, def string) string {
	if value != "" {
		return value
	}
	return def
}
