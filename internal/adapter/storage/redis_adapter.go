package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	appliedKeyPrefix = "applied:"
	appliedKeyTTL    = 7 * 24 * time.Hour
)

// RedisIdempotencyStore records idempotency keys whose stock adjustment was
// acknowledged. The TTL only bounds the short-circuit window; the inventory
// service's own replay guarantee backs expired keys.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (r *RedisIdempotencyStore) MarkApplied(ctx context.Context, key string) error {
	return r.client.Set(ctx, appliedKeyPrefix+key, 1, appliedKeyTTL).Err()
}

func (r *RedisIdempotencyStore) WasApplied(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, appliedKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
