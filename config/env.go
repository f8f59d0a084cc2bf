package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names recognized by the SDK. Any of these override
// the corresponding vault field.
const (
	EnvAPIKey         = "TL_API_KEY"
	EnvWebhookSecret  = "TL_WEBHOOK_SECRET"
	EnvSuccessURL     = "TL_SUCCESS_URL"
	EnvCancelURL      = "TL_CANCEL_URL"
	EnvCallbackURL    = "TL_CALLBACK_URL"
	EnvFrontendURL    = "TL_FRONTEND_URL"
	EnvEnvironment    = "TL_ENVIRONMENT"
	EnvBaseURL        = "TL_BASE_URL"
	EnvMaxRetries     = "TL_MAX_RETRIES"
	EnvBackoffMs      = "TL_BACKOFF_MS"
	EnvTimeoutMs      = "TL_TIMEOUT_MS"
	EnvIdempotency    = "TL_IDEMPOTENCY"
	EnvIdempotencyTTL = "TL_IDEMPOTENCY_TTL"
)

// LookupFunc reports an environment variable's value, mirroring os.LookupEnv.
// Stores accept a custom lookup so tests can run without touching the
// process environment.
type LookupFunc func(key string) (string, bool)

// loadDotenv loads .env files into the process environment. With no paths it
// tries ./.env and tolerates absence; explicitly named files must exist.
func loadDotenv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return NewError(ErrCodeInvalid, "loading .env", err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return NewError(ErrCodeInvalid, fmt.Sprintf("loading env file %s", strings.Join(paths, ", ")), err)
	}
	return nil
}

// applyEnv overlays every recognized TL_* variable onto cfg. Unparseable
// numeric or boolean values are errors, never silently ignored.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvAPIKey); ok {
		cfg.APIKey = v
	}
	if v, ok := lookup(EnvWebhookSecret); ok {
		cfg.WebhookSecret = v
	}
	if v, ok := lookup(EnvSuccessURL); ok {
		cfg.URLs.Success = v
	}
	if v, ok := lookup(EnvCancelURL); ok {
		cfg.URLs.Cancel = v
	}
	if v, ok := lookup(EnvCallbackURL); ok {
		cfg.URLs.Callback = v
	}
	if v, ok := lookup(EnvFrontendURL); ok {
		cfg.URLs.Frontend = v
	}
	if v, ok := lookup(EnvEnvironment); ok {
		cfg.Environment = Environment(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvBaseURL); ok {
		cfg.BaseURL = v
	}
	if err := overrideInt(lookup, EnvMaxRetries, &cfg.Retries.MaxAttempts); err != nil {
		return err
	}
	if err := overrideInt(lookup, EnvBackoffMs, &cfg.Retries.BackoffMs); err != nil {
		return err
	}
	if err := overrideInt(lookup, EnvTimeoutMs, &cfg.TimeoutMs); err != nil {
		return err
	}
	if v, ok := lookup(EnvIdempotency); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return NewError(ErrCodeInvalid, fmt.Sprintf("%s must be a boolean, got %q", EnvIdempotency, v), err)
		}
		cfg.Idempotency.Enabled = b
	}
	if err := overrideInt(lookup, EnvIdempotencyTTL, &cfg.Idempotency.TTLSeconds); err != nil {
		return err
	}
	return nil
}

func overrideInt(lookup LookupFunc, key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return NewError(ErrCodeInvalid, fmt.Sprintf("%s must be an integer, got %q", key, v), err)
	}
	*dst = n
	return nil
}

// missingRequired names the variables that would have satisfied the still
// empty required fields. Only meaningful on the env-only path: a vault is
// allowed to carry everything itself.
func missingRequired(cfg *Config) []string {
	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, EnvAPIKey)
	}
	if cfg.WebhookSecret == "" {
		missing = append(missing, EnvWebhookSecret)
	}
	if cfg.URLs.Success == "" {
		missing = append(missing, EnvSuccessURL)
	}
	if cfg.URLs.Cancel == "" {
		missing = append(missing, EnvCancelURL)
	}
	if cfg.URLs.Callback == "" {
		missing = append(missing, EnvCallbackURL)
	}
	return missing
}
