package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrapi/internal/cache"
)

func TestHashContentAddressed(t *testing.T) {
	// Identical bytes hash identically regardless of any filename.
	b1 := []byte("same image content")
	b2 := []byte("same image content")
	assert.Equal(t, cache.Hash(b1), cache.Hash(b2))

	assert.NotEqual(t, cache.Hash(b1), cache.Hash([]byte("different content")))
}

func TestHashFormat(t *testing.T) {
	digest := cache.Hash([]byte("abc"))
	assert.Len(t, digest, 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", digest)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := cache.NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	entry := cache.Entry{
		Text:       "Invoice #12345",
		Confidence: 0.9412,
		WordCount:  2,
		Language:   "en",
	}
	key := cache.Hash([]byte("payload"))

	require.NoError(t, store.Set(ctx, key, entry))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestMemoryStoreMiss(t *testing.T) {
	store := cache.NewMemoryStore(10, time.Minute)

	_, err := store.Get(context.Background(), cache.Hash([]byte("never stored")))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := cache.NewMemoryStore(10, 20*time.Millisecond)
	ctx := context.Background()
	key := cache.Hash([]byte("short lived"))

	require.NoError(t, store.Set(ctx, key, cache.Entry{Text: "t"}))

	_, err := store.Get(ctx, key)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestMemoryStoreEvictsLRU(t *testing.T) {
	store := cache.NewMemoryStore(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", cache.Entry{Text: "one"}))
	require.NoError(t, store.Set(ctx, "k2", cache.Entry{Text: "two"}))

	// Touch k1 so k2 becomes least recently used.
	_, err := store.Get(ctx, "k1")
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "k3", cache.Entry{Text: "three"}))

	_, err = store.Get(ctx, "k2")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	_, err = store.Get(ctx, "k1")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "k3")
	assert.NoError(t, err)
}

func TestMemoryStoreStats(t *testing.T) {
	store := cache.NewMemoryStore(100, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", cache.Entry{Text: "t"}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 100, stats.MaxSize)
	assert.Equal(t, 3600, stats.TTLSeconds)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := cache.NewMemoryStore(50, time.Minute)
	ctx := context.Background()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%60)
				_ = store.Set(ctx, key, cache.Entry{Text: key})
				if entry, err := store.Get(ctx, key); err == nil {
					// A racing eviction may miss, but never returns a torn entry.
					assert.Equal(t, key, entry.Text)
				}
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
