// Package cache provides the content-addressed OCR result cache.
//
// Keys are SHA-256 hex digests of the raw image bytes, so two uploads with
// identical content share one entry regardless of filename. Entries expire a
// fixed TTL after insertion; the memory backend additionally bounds the entry
// count with LRU eviction.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Entry is a cached OCR result.
type Entry struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	WordCount  int     `json:"word_count"`
	Language   string  `json:"language,omitempty"`
}

// Stats describes the cache for diagnostics.
type Stats struct {
	Size       int `json:"size"`
	MaxSize    int `json:"max_size"`
	TTLSeconds int `json:"ttl_seconds"`
}

// Store defines the result cache interface.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Hash returns the lowercase SHA-256 hex digest of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
