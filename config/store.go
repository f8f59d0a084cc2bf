package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Store owns the live Config for one SDK instance. Reads take a shared lock;
// Load, Reload, and Update serialize under the write lock so a failed merge
// can never leave a half-committed configuration visible.
type Store struct {
	mu        sync.RWMutex
	cfg       *Config
	vaultPath string
	password  string
	lookup    LookupFunc
	dotenv    []string
	useDotenv bool
	logger    *slog.Logger
}

// StoreOption customizes a Store before the first Load.
type StoreOption func(*Store)

// WithVaultPath points the store at a vault file other than DefaultVaultPath.
func WithVaultPath(path string) StoreOption {
	return func(s *Store) {
		s.vaultPath = path
	}
}

// WithVaultPassword supplies the password used to open and seal the vault.
func WithVaultPassword(password string) StoreOption {
	return func(s *Store) {
		s.password = password
	}
}

// WithEnvironLookup replaces os.LookupEnv, letting tests inject variables
// without mutating the process environment.
func WithEnvironLookup(lookup LookupFunc) StoreOption {
	return func(s *Store) {
		s.lookup = lookup
	}
}

// WithDotenv loads the named .env files (or ./.env when none are named)
// before reading the environment. Off by default: a library should not read
// dotfiles behind the host's back.
func WithDotenv(paths ...string) StoreOption {
	return func(s *Store) {
		s.useDotenv = true
		s.dotenv = paths
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store. Nothing is read until Load.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		vaultPath: DefaultVaultPath,
		lookup:    os.LookupEnv,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load builds the configuration from vault and environment and makes it
// live. On any failure the previous configuration, if one was loaded,
// stays in place.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.build()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.logger.Debug("configuration loaded",
		"environment", string(cfg.Environment),
		"baseUrl", cfg.BaseURL,
		"vault", VaultExists(s.vaultPath))
	return cfg, nil
}

// Reload rebuilds from the current vault and environment state.
func (s *Store) Reload() (*Config, error) {
	return s.Load()
}

// build merges vault (base) and environment (override), fills defaults, and
// validates. Must be called with the write lock held.
func (s *Store) build() (*Config, error) {
	if s.useDotenv {
		if err := loadDotenv(s.dotenv...); err != nil {
			return nil, err
		}
	}

	cfg := newBase()
	fromVault := VaultExists(s.vaultPath)
	if fromVault {
		opened, err := OpenVault(s.vaultPath, s.password)
		if err != nil {
			return nil, err
		}
		cfg = opened
	}
	if err := applyEnv(cfg, s.lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if !fromVault {
		if missing := missingRequired(cfg); len(missing) > 0 {
			return nil, NewError(ErrCodeMissingEnv,
				fmt.Sprintf("no vault at %s and required variables unset: %s",
					s.vaultPath, strings.Join(missing, ", ")), nil)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config returns the current snapshot. Callers must treat it as read-only;
// mutation goes through Update.
func (s *Store) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace installs cfg wholesale, bypassing vault and environment. The value
// is cloned, defaulted, and validated before it becomes visible, so the
// caller keeps ownership of cfg and a bad value never goes live.
func (s *Store) Replace(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, NewError(ErrCodeInvalid, "nil configuration", nil)
	}
	next := cfg.Clone()
	next.applyDefaults()
	if err := next.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = next
	s.logger.Debug("configuration replaced",
		"environment", string(next.Environment),
		"baseUrl", next.BaseURL)
	return next, nil
}

// Update clones the live configuration, applies the mutation, validates the
// clone, and swaps it in. On validation failure the live configuration is
// untouched.
func (s *Store) Update(apply func(*Config)) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg == nil {
		return nil, NewError(ErrCodeInvalid, "no configuration loaded", nil)
	}
	next := s.cfg.Clone()
	apply(next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	s.cfg = next
	s.logger.Debug("configuration updated")
	return next, nil
}

// Save seals the live configuration to the vault path atomically and
// remembers the password for subsequent reloads.
func (s *Store) Save(password string) error {
	s.mu.RLock()
	cfg := s.cfg
	path := s.vaultPath
	s.mu.RUnlock()

	if cfg == nil {
		return NewError(ErrCodeInvalid, "no configuration loaded", nil)
	}
	if err := SealVault(cfg, path, password); err != nil {
		return err
	}

	s.mu.Lock()
	s.password = password
	s.mu.Unlock()
	s.logger.Debug("configuration saved to vault", "path", path)
	return nil
}

// VaultPath returns the path this store reads and writes.
func (s *Store) VaultPath() string {
	return s.vaultPath
}
