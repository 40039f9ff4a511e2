package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ocr:"

// RedisStore implements Store on Redis, for deployments where cached results
// should survive restarts and be shared across instances. Capacity bounding
// is left to Redis eviction policy; the TTL is applied per entry.
type RedisStore struct {
	client     *redis.Client
	maxEntries int
	ttl        time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a Redis-backed cache and verifies the connection.
func NewRedisStore(cfg RedisConfig, maxEntries int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client:     client,
		maxEntries: maxEntries,
		ttl:        ttl,
	}, nil
}

// Get retrieves a cached entry, or ErrCacheMiss if absent or expired.
func (r *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrCacheMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		return Entry{}, fmt.Errorf("redis decode: %w", err)
	}
	return entry, nil
}

// Set stores an entry with the configured TTL.
func (r *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, val, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Stats reports current size and configuration. Size counts keys under the
// cache prefix.
func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var size int
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("redis scan: %w", err)
	}

	return Stats{
		Size:       size,
		MaxSize:    r.maxEntries,
		TTLSeconds: int(r.ttl.Seconds()),
	}, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
