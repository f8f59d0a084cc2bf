package magic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/transactlab/magic-go/webhook"
)

// MaxWebhookBody caps inbound payload reads at 1 MiB. Platform events are
// small; anything larger is hostile or broken.
const MaxWebhookBody = 1 << 20

// EventHandler processes a verified webhook event. The returned map is
// merged into the {"received": true} acknowledgement; its keys win on
// conflict. Returning an error, or panicking, yields a 500 without
// crashing the host.
type EventHandler func(ctx context.Context, event *webhook.Event) (map[string]interface{}, error)

// ProcessWebhook is the framework-agnostic webhook core: raw bytes and a
// header map in, an HTTP status and JSON-ready body out. HandleWebhook and
// the pkg/gin and pkg/echo adapters are thin shells around it.
func (c *Client) ProcessWebhook(ctx context.Context, body []byte, headers map[string]string, handler EventHandler) (int, map[string]interface{}) {
	event, err := c.Verifier().Verify(body, headers)
	if err != nil {
		var payloadErr *webhook.PayloadError
		if errors.As(err, &payloadErr) {
			c.logger.Warn("webhook payload rejected", "error", err)
			return http.StatusBadRequest, errorBody("invalid payload", CodeInvalidPayload)
		}
		c.logger.Warn("webhook signature rejected")
		return http.StatusUnauthorized, errorBody("invalid signature", CodeInvalidSignature)
	}

	response, err := c.dispatch(ctx, handler, event)
	if err != nil {
		c.logger.Error("webhook handler failed", "type", event.Type, "error", err)
		return http.StatusInternalServerError, errorBody("webhook handler failed", CodeHandlerError)
	}

	envelope := map[string]interface{}{"received": true}
	for key, value := range response {
		envelope[key] = value
	}
	return http.StatusOK, envelope
}

// HandleWebhook returns an http.HandlerFunc that verifies the inbound
// delivery and dispatches it to handler. The verifier always sees the raw
// body bytes: any middleware that re-encodes the body upstream will break
// signature checks.
func (c *Client) HandleWebhook(handler EventHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
		if err != nil {
			c.logger.Warn("webhook body read failed", "error", err)
			writeJSON(w, http.StatusBadRequest, errorBody("invalid payload", CodeInvalidPayload))
			return
		}
		status, payload := c.ProcessWebhook(r.Context(), body, FlattenHeaders(r.Header), handler)
		writeJSON(w, status, payload)
	}
}

// dispatch runs the handler, converting a panic into an error so inbound
// delivery can never take down the host process.
func (c *Client) dispatch(ctx context.Context, handler EventHandler, event *webhook.Event) (response map[string]interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, event)
}

// FlattenHeaders reduces an http.Header to the first value per name, the
// shape the verifier works with.
func FlattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name := range header {
		flat[name] = header.Get(name)
	}
	return flat
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
