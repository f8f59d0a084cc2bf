// Package webhook authenticates inbound callback payloads.
//
// Every delivery carries an HMAC-SHA256 digest of the raw request body,
// keyed with the shared webhook secret. Verify locates the signature across
// the header spellings in the wild, compares it in constant time, and only
// then parses the payload into an Event.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
)

// signatureHeaders are the accepted header names, checked in this order
// against lowercased request headers. The first present, non-empty header
// wins; the rest are ignored even if they would have verified.
var signatureHeaders = []string{
	"tl-signature",
	"x-tl-signature",
	"x-webhook-signature",
	"signature",
}

// Verifier checks webhook signatures for a single shared secret.
type Verifier struct {
	secret []byte
	schema []byte
	logger *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithSchema validates every verified payload against the given JSON schema.
// Violations surface as a *PayloadError.
func WithSchema(schemaJSON []byte) Option {
	return func(v *Verifier) {
		v.schema = schemaJSON
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVerifier creates a Verifier for the given webhook secret.
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret: []byte(secret),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify authenticates body against the signature carried in headers and
// returns the parsed event. Header names are matched case-insensitively.
// It returns ErrMissingSignature when no signature header is present,
// ErrInvalidSignature when the digest does not match, and a *PayloadError
// when the signature checks out but the body is not a usable JSON object.
func (v *Verifier) Verify(body []byte, headers map[string]string) (*Event, error) {
	signature, ok := findSignature(headers)
	if !ok {
		v.logger.Debug("webhook rejected", "reason", "missing signature header")
		return nil, ErrMissingSignature
	}
	if err := v.VerifySignature(body, signature); err != nil {
		v.logger.Debug("webhook rejected", "reason", "signature mismatch")
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, &PayloadError{Err: err}
	}
	event.Raw = append(json.RawMessage(nil), body...)

	if v.schema != nil {
		if err := v.validateSchema(body); err != nil {
			return nil, err
		}
	}
	return &event, nil
}

// VerifySignature checks a single signature value against body. The value
// may be a bare hex digest or the structured "t=<timestamp>,s=<hex>" form;
// the timestamp component is tolerated but not evaluated.
func (v *Verifier) VerifySignature(body []byte, signature string) error {
	provided, err := parseSignature(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, provided) {
		return ErrInvalidSignature
	}
	return nil
}

// Signature returns the hex digest the platform sends for body. Exposed for
// tests and sandbox tooling that emit their own deliveries.
func (v *Verifier) Signature(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// findSignature scans headers for the first accepted signature header.
// An empty header value counts as absent.
func findSignature(headers map[string]string) (string, bool) {
	lowered := make(map[string]string, len(headers))
	for name, value := range headers {
		lowered[strings.ToLower(name)] = value
	}
	for _, name := range signatureHeaders {
		if value, ok := lowered[name]; ok && value != "" {
			return value, true
		}
	}
	return "", false
}

// parseSignature decodes either accepted form to raw digest bytes. The
// caller collapses every failure into ErrInvalidSignature so responses do
// not reveal whether the value was malformed or merely wrong.
func parseSignature(signature string) ([]byte, error) {
	value := strings.TrimSpace(signature)
	if !strings.Contains(value, "=") {
		return hex.DecodeString(value)
	}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if hexSig, found := strings.CutPrefix(part, "s="); found {
			return hex.DecodeString(hexSig)
		}
	}
	return nil, errors.New("no s= component in structured signature")
}
