package store

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis, adapted from the teacher's
// routers.RedisStatsStore: same key-prefix convention and shared
// redis.UniversalClient (the caller owns the client's lifecycle; Close
// is a no-op here, mirroring the teacher's own comment that the client
// is shared and must not be closed by the store).
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithKeyPrefix overrides the default "moerouter:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.keyPrefix = prefix }
}

// NewRedis creates a Redis-backed store using client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, keyPrefix: "moerouter:"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) fullKey(key string) string {
	return r.keyPrefix + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.fullKey(key), value, 0).Err()
}

func (r *Redis) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	return r.client.IncrBy(ctx, r.fullKey(key), delta).Result()
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := r.fullKey(prefix) + "*"
	var out []string

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Redis) Close() error {
	return nil
}

var _ Store = (*Redis)(nil)
