package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/gift-market/internal/port"
)

const (
	purchaseKeyPrefix = "purchase:"
	defaultDedupTTL   = 24 * time.Hour
)

// RedisAdapter guards purchase request ids so a retried request is applied
// at most once across every server instance sharing the Redis.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

// Reserve claims key. It reports false when another request already holds it.
func (r *RedisAdapter) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, purchaseKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// Release drops a reservation so the request can be retried.
func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, purchaseKeyPrefix+key).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ port.DedupRepository = (*RedisAdapter)(nil)
