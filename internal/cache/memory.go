package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process LRU cache with per-entry TTL.
type MemoryStore struct {
	lru        *expirable.LRU[string, Entry]
	maxEntries int
	ttl        time.Duration
}

// NewMemoryStore creates a memory cache holding at most maxEntries entries,
// each expiring ttl after insertion. Safe for concurrent use.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		lru:        expirable.NewLRU[string, Entry](maxEntries, nil, ttl),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get retrieves a cached entry, or ErrCacheMiss if absent or expired.
func (m *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return Entry{}, ErrCacheMiss
	}
	return entry, nil
}

// Set stores an entry, evicting the least-recently-used one when full.
func (m *MemoryStore) Set(_ context.Context, key string, entry Entry) error {
	m.lru.Add(key, entry)
	return nil
}

// Stats reports current size and configuration.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	return Stats{
		Size:       m.lru.Len(),
		MaxSize:    m.maxEntries,
		TTLSeconds: int(m.ttl.Seconds()),
	}, nil
}

// Close is a no-op for the memory backend.
func (m *MemoryStore) Close() error {
	return nil
}
