package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the link document when no key is configured.
const DefaultRedisKey = "shortlink:snapshot"

// RedisSnapshot stores the document under a single Redis key.
type RedisSnapshot struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshot creates a Redis-backed snapshotter.
func NewRedisSnapshot(client *redis.Client, key string) *RedisSnapshot {
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisSnapshot{client: client, key: key}
}

func (r *RedisSnapshot) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}

		return nil, err
	}

	return data, nil
}

func (r *RedisSnapshot) Write(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, 0).Err()
}

// Shutdown is a no-op for RedisSnapshot (client managed externally).
func (r *RedisSnapshot) Shutdown() error {
	return nil
}

// Compile-time check.
var _ Snapshotter = (*RedisSnapshot)(nil)
