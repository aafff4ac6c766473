// Package store holds the cache-resident session state: live refresh
// tokens, keyed three ways for three access patterns. The backing
// store is abstracted behind the KV interface so the production
// binding (Redis) stays swappable.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is absent or already expired.
var ErrNotFound = errors.New("key not found")

// KV is the capability the refresh store needs from its backing
// cache: atomic get, set-with-TTL and multi-key delete.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisKV binds KV to a go-redis client.
type RedisKV struct{ RDB *redis.Client }

func NewRedisKV(rdb *redis.Client) *RedisKV { return &RedisKV{RDB: rdb} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.RDB.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.RDB.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.RDB.Del(ctx, keys...).Err()
}
