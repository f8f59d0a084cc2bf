package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSweepThreshold is the store size that triggers an opportunistic
// sweep of expired entries after a write. Bounds memory without needing a
// background timer.
const DefaultSweepThreshold = 512

// Store caches successful responses per idempotency key. Implementations
// must be safe for concurrent use. There is no in-flight coordination: two
// concurrent requests with the same key may both miss and both reach the
// network, and the later write wins.
type Store interface {
	// Get returns the cached response for key. Expired entries are misses.
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	// Set caches a response under key for ttl.
	Set(ctx context.Context, key string, response json.RawMessage, ttl time.Duration)
	// Size reports the number of entries, expired ones included.
	Size(ctx context.Context) int
	// Sweep drops expired entries and reports how many were removed.
	Sweep(ctx context.Context) int
}

// DeriveKey creates the deterministic idempotency key for a request:
// SHA-256 over method, URL, and body. An absent body canonicalizes to an
// empty JSON object, so equal requests always hash to the same key.
func DeriveKey(method, url string, body []byte) string {
	if len(body) == 0 {
		body = []byte("{}")
	}
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{'\n'})
	h.Write([]byte(url))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// NewIdempotencyKey returns a random caller-side key: "idem_" plus a v4 UUID
// without hyphens.
func NewIdempotencyKey() string {
	return "idem_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

type memoryEntry struct {
	response  json.RawMessage
	expiresAt time.Time
}

// MemoryStore is the default Store: a mutex-guarded map with lazy expiry on
// read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		// Expired - clean it up
		delete(s.entries, key)
		return nil, false
	}
	return entry.response, true
}

func (s *MemoryStore) Set(_ context.Context, key string, response json.RawMessage, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{response: response, expiresAt: time.Now().Add(ttl)}
}

func (s *MemoryStore) Size(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Sweep(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

var _ Store = (*MemoryStore)(nil)
