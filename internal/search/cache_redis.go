package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mediatrack/searchservice/internal/domain"
)

const redisCacheKeyPrefix = "msearch:cache:"

// RedisCacheBackend shares cached search responses between replicas. It is
// strictly optional: every method degrades to a no-op style answer when Redis
// is unreachable, and the in-memory cache keeps working.
type RedisCacheBackend struct {
	client *redis.Client
}

func NewRedisCacheBackend(client *redis.Client) *RedisCacheBackend {
	if client == nil {
		return nil
	}
	return &RedisCacheBackend{client: client}
}

func (b *RedisCacheBackend) Ping(ctx context.Context) error {
	if b == nil || b.client == nil {
		return errors.New("redis cache backend is not configured")
	}
	return b.client.Ping(ctx).Err()
}

func (b *RedisCacheBackend) Get(ctx context.Context, key string) (domain.SearchResponse, bool, error) {
	if b == nil || b.client == nil {
		return domain.SearchResponse{}, false, nil
	}

	payload, err := b.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SearchResponse{}, false, nil
	}
	if err != nil {
		return domain.SearchResponse{}, false, fmt.Errorf("redis cache get: %w", err)
	}

	var response domain.SearchResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		// Corrupt entry; drop it rather than serve garbage.
		_ = b.client.Del(ctx, redisKey(key)).Err()
		return domain.SearchResponse{}, false, fmt.Errorf("redis cache decode: %w", err)
	}
	return response, true, nil
}

func (b *RedisCacheBackend) Set(ctx context.Context, key string, response domain.SearchResponse, ttl time.Duration) error {
	if b == nil || b.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("redis cache encode: %w", err)
	}
	if err := b.client.Set(ctx, redisKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

func (b *RedisCacheBackend) Delete(ctx context.Context, key string) error {
	if b == nil || b.client == nil {
		return nil
	}
	if err := b.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis cache delete: %w", err)
	}
	return nil
}

// redisKey hashes the logical cache key so arbitrary query text never leaks
// into the Redis keyspace.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return redisCacheKeyPrefix + hex.EncodeToString(sum[:])
}
