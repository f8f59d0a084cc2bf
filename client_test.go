package magic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transactlab/magic-go/config"
)

// sandboxConfig returns a valid configuration pointed at baseURL.
func sandboxConfig(baseURL string) *config.Config {
	return &config.Config{
		APIKey:        "sk_sandbox_test",
		WebhookSecret: "whsec_test",
		URLs: config.URLConfig{
			Success:  "https://merchant.example.com/success",
			Cancel:   "https://merchant.example.com/cancel",
			Callback: "https://merchant.example.com/webhooks/transactlab",
			Frontend: "https://pay.example.com",
		},
		BaseURL:     baseURL,
		Retries:     config.RetryConfig{MaxAttempts: 3, BackoffMs: 100},
		TimeoutMs:   2000,
		Idempotency: config.IdempotencyConfig{Enabled: true, TTLSeconds: 60},
	}
}

// captureServer records the last request body and counts calls.
func captureServer(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int64, *atomic.Pointer[map[string]interface{}]) {
	t.Helper()
	var calls atomic.Int64
	var lastBody atomic.Pointer[map[string]interface{}]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			lastBody.Store(&body)
		}
		respond(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls, &lastBody
}

func newTestClient(t *testing.T, baseURL string, opts ...ClientOption) *Client {
	t.Helper()
	client, err := New(append([]ClientOption{WithConfig(sandboxConfig(baseURL))}, opts...)...)
	require.NoError(t, err)
	return client
}

// withEmptyEnvironment keeps host TL_* variables out of vault-load tests.
func withEmptyEnvironment() ClientOption {
	return func(c *Client) {
		c.lookup = func(string) (string, bool) { return "", false }
	}
}

func TestNewWithExplicitConfig(t *testing.T) {
	client := newTestClient(t, "https://sandbox.example.com")
	assert.Equal(t, "sk_sandbox_test", client.Config().APIKey)
	assert.Equal(t, config.EnvSandbox, client.Config().Environment)
	assert.NotNil(t, client.Verifier())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := sandboxConfig("https://sandbox.example.com")
	cfg.APIKey = ""
	_, err := New(WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestNewVaultDecryptFailureIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	require.NoError(t, os.WriteFile(path, []byte("not a vault"), 0o600))

	_, err := New(WithVaultPath(path), WithVaultPassword("pw"))
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.ErrCodeVaultDecrypt, cfgErr.Code)
}

func TestCreateSession(t *testing.T) {
	server, calls, lastBody := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sandbox/sessions", r.URL.Path)
		assert.Equal(t, "sk_sandbox_test", r.Header.Get("x-sandbox-secret"))
		w.Write([]byte(`{"success":true,"data":{"sessionId":"sess_1","checkoutUrl":"https://pay.example.com/checkout/sess_1"}}`))
	})
	client := newTestClient(t, server.URL)

	resp, err := client.CreateSession(context.Background(), SessionRequest{
		Amount:        120.00,
		Currency:      "ngn",
		Description:   "Starter plan",
		CustomerEmail: "jo@example.com",
		CustomerName:  "Jo",
		Metadata:      map[string]interface{}{"orderId": "ord_7"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	// Response comes back verbatim.
	assert.Equal(t, true, resp["success"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "sess_1", data["sessionId"])

	// Wire body: minor units, uppercased currency, configured URL defaults.
	body := *lastBody.Load()
	assert.Equal(t, float64(12000), body["amount"])
	assert.Equal(t, "NGN", body["currency"])
	assert.Equal(t, "Starter plan", body["description"])
	assert.Equal(t, "jo@example.com", body["customerEmail"])
	assert.Equal(t, "Jo", body["customerName"])
	assert.Equal(t, "https://merchant.example.com/success", body["successUrl"])
	assert.Equal(t, "https://merchant.example.com/cancel", body["cancelUrl"])
	assert.Equal(t, "https://merchant.example.com/webhooks/transactlab", body["callbackUrl"])
	assert.Equal(t, map[string]interface{}{"orderId": "ord_7"}, body["metadata"])
}

func TestCreateSessionValidation(t *testing.T) {
	client := newTestClient(t, "https://sandbox.example.com")
	base := SessionRequest{
		Amount:        50,
		Currency:      "USD",
		Description:   "Test",
		CustomerEmail: "a@b.com",
	}

	tests := []struct {
		name   string
		mutate func(*SessionRequest)
		field  string
	}{
		{"zero amount", func(r *SessionRequest) { r.Amount = 0 }, "amount"},
		{"negative amount", func(r *SessionRequest) { r.Amount = -5 }, "amount"},
		{"missing currency", func(r *SessionRequest) { r.Currency = "" }, "currency"},
		{"missing description", func(r *SessionRequest) { r.Description = "  " }, "description"},
		{"missing email", func(r *SessionRequest) { r.CustomerEmail = "" }, "customerEmail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := client.CreateSession(context.Background(), req)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestCreateSessionRepeatServedFromCache(t *testing.T) {
	server, calls, _ := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"sessionId":"sess_1","checkoutUrl":"https://x/sess_1"}}`))
	})
	client := newTestClient(t, server.URL)

	req := SessionRequest{
		Amount:        3000,
		Currency:      "NGN",
		Description:   "Test",
		CustomerEmail: "a@b.com",
	}
	first, err := client.CreateSession(context.Background(), req)
	require.NoError(t, err)
	second, err := client.CreateSession(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load(), "repeat call should not hit the network")
	assert.Equal(t, first, second)
}

func TestCreateSessionDistinctBodiesAreDistinctCalls(t *testing.T) {
	server, calls, _ := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	client := newTestClient(t, server.URL)

	req := SessionRequest{Amount: 50, Currency: "USD", Description: "Test", CustomerEmail: "a@b.com"}
	_, err := client.CreateSession(context.Background(), req)
	require.NoError(t, err)

	req.Amount = 60
	_, err = client.CreateSession(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCreateSessionPerRequestURLOverride(t *testing.T) {
	server, _, lastBody := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	client := newTestClient(t, server.URL)

	_, err := client.CreateSession(context.Background(), SessionRequest{
		Amount:        50,
		Currency:      "USD",
		Description:   "Test",
		CustomerEmail: "a@b.com",
		SuccessURL:    "https://override.example.com/done",
	})
	require.NoError(t, err)

	body := *lastBody.Load()
	assert.Equal(t, "https://override.example.com/done", body["successUrl"])
	assert.Equal(t, "https://merchant.example.com/cancel", body["cancelUrl"])
}

func TestCreateSubscription(t *testing.T) {
	server, _, lastBody := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sandbox/subscriptions", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"subscriptionId":"sub_1"}}`))
	})
	client := newTestClient(t, server.URL)

	resp, err := client.CreateSubscription(context.Background(), SubscriptionRequest{
		PlanID:        "plan_basic",
		CustomerEmail: "a@b.com",
		TrialDays:     14,
	})
	require.NoError(t, err)
	assert.Equal(t, true, resp["success"])

	body := *lastBody.Load()
	assert.Equal(t, "plan_basic", body["planId"])
	assert.Equal(t, "a@b.com", body["customerEmail"])
	assert.Equal(t, float64(14), body["trialDays"])
	// ChargeNow defaults to true when unset.
	assert.Equal(t, true, body["chargeNow"])
}

func TestCreateSubscriptionChargeNowExplicitFalse(t *testing.T) {
	server, _, lastBody := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	client := newTestClient(t, server.URL)

	chargeNow := false
	_, err := client.CreateSubscription(context.Background(), SubscriptionRequest{
		PlanID:        "plan_basic",
		CustomerEmail: "a@b.com",
		ChargeNow:     &chargeNow,
	})
	require.NoError(t, err)

	body := *lastBody.Load()
	assert.Equal(t, false, body["chargeNow"])
	_, hasTrial := body["trialDays"]
	assert.False(t, hasTrial, "zero trialDays stays off the wire")
}

func TestCreateSubscriptionValidation(t *testing.T) {
	client := newTestClient(t, "https://sandbox.example.com")

	_, err := client.CreateSubscription(context.Background(), SubscriptionRequest{CustomerEmail: "a@b.com"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "planId", validationErr.Field)

	_, err = client.CreateSubscription(context.Background(), SubscriptionRequest{PlanID: "plan_basic"})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "customerEmail", validationErr.Field)

	_, err = client.CreateSubscription(context.Background(), SubscriptionRequest{
		PlanID: "plan_basic", CustomerEmail: "a@b.com", TrialDays: -1,
	})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "trialDays", validationErr.Field)
}

func TestProcessPayment(t *testing.T) {
	server, calls, lastBody := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/process/sess_123", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"paymentId":"pay_1","status":"completed"}}`))
	})
	client := newTestClient(t, server.URL)

	payment := map[string]interface{}{"method": "card", "cardNumber": "4242424242424242"}
	resp, err := client.ProcessPayment(context.Background(), "sess_123", payment)
	require.NoError(t, err)
	assert.Equal(t, true, resp["success"])

	body := *lastBody.Load()
	assert.Equal(t, "card", body["method"])

	// Repeat calls are distinct payment attempts, never cache hits.
	_, err = client.ProcessPayment(context.Background(), "sess_123", payment)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestProcessPaymentRequiresSessionID(t *testing.T) {
	client := newTestClient(t, "https://sandbox.example.com")

	_, err := client.ProcessPayment(context.Background(), "  ", nil)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "sessionId", validationErr.Field)
}

func TestCheckoutURL(t *testing.T) {
	client := newTestClient(t, "https://sandbox.example.com")
	assert.Equal(t, "https://pay.example.com/checkout/sess_1", client.CheckoutURL("sess_1"))
	assert.Equal(t, "", client.CheckoutURL(""))

	require.NoError(t, client.UpdateConfig(func(c *config.Config) {
		c.URLs.Frontend = "https://pay.example.com/"
	}))
	assert.Equal(t, "https://pay.example.com/checkout/sess_1", client.CheckoutURL("sess_1"),
		"trailing slash collapses")

	require.NoError(t, client.UpdateConfig(func(c *config.Config) {
		c.URLs.Frontend = ""
	}))
	assert.Equal(t, "", client.CheckoutURL("sess_1"))
}

func TestUpdateConfigRepointsTransport(t *testing.T) {
	serverA, callsA, _ := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"server":"a"}`))
	})
	serverB, callsB, _ := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"server":"b"}`))
	})
	client := newTestClient(t, serverA.URL)

	_, err := client.ProcessPayment(context.Background(), "sess_1", nil)
	require.NoError(t, err)
	require.NoError(t, client.UpdateConfig(func(c *config.Config) {
		c.BaseURL = serverB.URL
	}))
	resp, err := client.ProcessPayment(context.Background(), "sess_1", nil)
	require.NoError(t, err)

	assert.Equal(t, "b", resp["server"])
	assert.Equal(t, int64(1), callsA.Load())
	assert.Equal(t, int64(1), callsB.Load())
}

func TestUpdateConfigFailureChangesNothing(t *testing.T) {
	server, _, _ := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	client := newTestClient(t, server.URL)
	before := client.Config()

	err := client.UpdateConfig(func(c *config.Config) { c.TimeoutMs = 1 })
	assert.ErrorIs(t, err, config.ErrBadTimeoutMs)
	assert.Same(t, before, client.Config())

	_, err = client.ProcessPayment(context.Background(), "sess_1", nil)
	assert.NoError(t, err, "client still works on the old config")
}

func TestSaveVaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	client := newTestClient(t, "https://sandbox.example.com", WithVaultPath(path))

	require.NoError(t, client.SaveVault("hunter2"))

	reloaded, err := New(
		WithVaultPath(path),
		WithVaultPassword("hunter2"),
		withEmptyEnvironment(),
	)
	require.NoError(t, err)
	assert.Equal(t, client.Config().APIKey, reloaded.Config().APIKey)
	assert.Equal(t, client.Config().URLs, reloaded.Config().URLs)
	assert.Equal(t, client.Config().BaseURL, reloaded.Config().BaseURL)
}

func TestIdempotencyCacheSurvivesConfigUpdate(t *testing.T) {
	server, calls, _ := captureServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	client := newTestClient(t, server.URL)

	req := SessionRequest{Amount: 50, Currency: "USD", Description: "Test", CustomerEmail: "a@b.com"}
	_, err := client.CreateSession(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, client.UpdateConfig(func(c *config.Config) {
		c.TimeoutMs = 5000
	}))

	_, err = client.CreateSession(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load(), "cache carries across config updates")
}
