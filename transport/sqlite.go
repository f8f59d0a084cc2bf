package transport

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists idempotency entries across process restarts. Cache
// semantics stay best-effort: a read or write failure degrades to a miss or
// a dropped write with a warning, never a failed request.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteStore opens, creating if needed, the cache database at path.
func OpenSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS idempotency_cache (
		cache_key  TEXT PRIMARY KEY,
		response   BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	var response []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT response, expires_at FROM idempotency_cache WHERE cache_key = ?", key,
	).Scan(&response, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("idempotency cache read failed", "error", err)
		return nil, false
	}
	if time.Now().UnixMilli() >= expiresAt {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM idempotency_cache WHERE cache_key = ?", key); err != nil {
			s.logger.Warn("idempotency cache delete failed", "error", err)
		}
		return nil, false
	}
	return response, true
}

func (s *SQLiteStore) Set(ctx context.Context, key string, response json.RawMessage, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl).UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (cache_key, response, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET response = excluded.response, expires_at = excluded.expires_at`,
		key, []byte(response), expiresAt)
	if err != nil {
		s.logger.Warn("idempotency cache write failed", "error", err)
	}
}

func (s *SQLiteStore) Size(ctx context.Context) int {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM idempotency_cache").Scan(&count); err != nil {
		s.logger.Warn("idempotency cache count failed", "error", err)
		return 0
	}
	return count
}

func (s *SQLiteStore) Sweep(ctx context.Context) int {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM idempotency_cache WHERE expires_at <= ?", time.Now().UnixMilli())
	if err != nil {
		s.logger.Warn("idempotency cache sweep failed", "error", err)
		return 0
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return int(removed)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
