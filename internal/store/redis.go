package store

import (
	"context"
	"errors"

	"github.com/wendao/limitpulse/pkg/redis"
)

// RedisLocation keeps artifacts in the cache for fast dashboard reads.
// Entries expire after a day; durability comes from the file locations.
type RedisLocation struct {
	cache *redis.Cache
}

// NewRedisLocation creates a cache-backed location.
func NewRedisLocation(cache *redis.Cache) *RedisLocation {
	return &RedisLocation{cache: cache}
}

func (l *RedisLocation) Name() string { return "redis" }

func (l *RedisLocation) Put(ctx context.Context, dataType, date string, payload []byte) error {
	return l.cache.SetBytes(ctx, redis.SnapshotKey(dataType, date), payload, redis.TTLDaily)
}

func (l *RedisLocation) Get(ctx context.Context, dataType, date string) ([]byte, error) {
	payload, err := l.cache.GetBytes(ctx, redis.SnapshotKey(dataType, date))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

// Dates returns nothing: the cache cannot enumerate cheaply, and every
// cached artifact also exists in a file location.
func (l *RedisLocation) Dates(ctx context.Context, dataType string) ([]string, error) {
	return nil, nil
}
