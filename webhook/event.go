package webhook

import "encoding/json"

// Event is a verified inbound webhook payload. Type names the event
// (e.g. "payment.completed") and Data carries its object payload. Raw holds
// the exact bytes that were signed, for callers that need fields beyond the
// envelope.
type Event struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
	Raw  json.RawMessage        `json:"-"`
}
