// Package magic is the Go SDK for the TransactLab payment sandbox.
//
// # Overview
//
// The SDK wraps the sandbox REST API behind four calls: CreateSession,
// CreateSubscription, ProcessPayment, and HandleWebhook. Underneath, a
// retrying HTTP transport with response idempotency, a constant-time
// webhook verifier, and an encrypted-vault configuration store do the
// heavy lifting; each is usable on its own from the transport, webhook,
// and config packages.
//
// # Usage
//
// Configuration comes from an encrypted vault file, TL_* environment
// variables, or both, with the environment winning:
//
//	client, err := magic.New(
//	    magic.WithVaultPath(".transactlab/vault.enc"),
//	    magic.WithVaultPassword(os.Getenv("VAULT_PASSWORD")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := client.CreateSession(ctx, magic.SessionRequest{
//	    Amount:        120.00,
//	    Currency:      "NGN",
//	    Description:   "Starter plan",
//	    CustomerEmail: "jo@example.com",
//	})
//
// Amounts are given in major units; the SDK converts to the currency's
// minor unit on the wire (12000 for the call above).
//
// # Webhooks
//
// HandleWebhook verifies the HMAC-SHA256 signature over the raw body
// before your handler runs, and answers 401, 400, or 500 on signature,
// payload, or handler failure:
//
//	http.Handle("/webhooks/transactlab", client.HandleWebhook(
//	    func(ctx context.Context, event *webhook.Event) (map[string]interface{}, error) {
//	        switch event.Type {
//	        case "payment.completed":
//	            // fulfil the order
//	        }
//	        return nil, nil
//	    },
//	))
//
// Gin and Echo hosts can use the adapters in pkg/gin and pkg/echo instead.
//
// # Idempotency
//
// CreateSession and CreateSubscription derive an idempotency key from the
// full request body: repeating an identical call within the configured TTL
// returns the cached response without a second network request. Keys and
// cached responses live in memory by default; wire a transport.SQLiteStore
// through WithIdempotencyStore to keep them across restarts.
// ProcessPayment is never keyed: every call is a distinct payment attempt.
package magic
