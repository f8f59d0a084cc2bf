package config

import (
	"errors"
	"fmt"
)

// Error codes distinguishing how configuration loading failed
const (
	ErrCodeVaultDecrypt = "vault_decrypt_failed"
	ErrCodeMissingEnv   = "missing_env"
	ErrCodeInvalid      = "invalid_config"
)

// Error is returned for every configuration failure. Code tells callers which
// stage failed without string matching; Err carries the underlying cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a configuration error with the given code
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Field validation errors. Validate joins the violated ones inside an Error
// with code ErrCodeInvalid, so errors.Is still matches individual fields.
var (
	ErrMissingAPIKey        = errors.New("apiKey is required")
	ErrMissingWebhookSecret = errors.New("webhookSecret is required")
	ErrBadSuccessURL        = errors.New("urls.success must be a valid URL")
	ErrBadCancelURL         = errors.New("urls.cancel must be a valid URL")
	ErrBadCallbackURL       = errors.New("urls.callback must be a valid URL")
	ErrBadFrontendURL       = errors.New("urls.frontend must be a valid URL")
	ErrBadBaseURL           = errors.New("baseUrl must be a valid URL")
	ErrBadEnvironment       = errors.New("environment must be sandbox or production")
	ErrBadMaxAttempts       = errors.New("retries.maxAttempts must be between 1 and 10")
	ErrBadBackoffMs         = errors.New("retries.backoffMs must be between 100 and 10000")
	ErrBadTimeoutMs         = errors.New("timeout must be between 1000 and 300000 milliseconds")
	ErrBadTTLSeconds        = errors.New("idempotency.ttlSeconds must be at least 1")
)
