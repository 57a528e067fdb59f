package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token in a Redis key so several gateway instances
// share one session.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// Compile-time check to ensure RedisStore implements TokenStore
var _ TokenStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore using key "<prefix>:accessToken".
// A zero ttl stores the token without expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if prefix == "" {
		return nil, fmt.Errorf("key prefix cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("ttl cannot be negative")
	}

	return &RedisStore{
		client: client,
		key:    prefix + ":accessToken",
		ttl:    ttl,
	}, nil
}

func (r *RedisStore) Read(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", r.key, err)
	}
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (r *RedisStore) Write(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}
