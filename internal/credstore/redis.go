package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ghdevice:"

// RedisBackend keeps secrets in Redis so a fleet of CI runners can share one login
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a Redis-backed backend
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// NewRedisBackendFromURL parses a redis:// URL and creates a backend for it
func NewRedisBackendFromURL(rawURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisBackend(redis.NewClient(opts)), nil
}

// Name implements Backend
func (b *RedisBackend) Name() string {
	return BackendRedis
}

func redisKey(service, identity string) string {
	return redisKeyPrefix + service + ":" + identity
}

// Read implements Backend
func (b *RedisBackend) Read(ctx context.Context, service, identity string) (string, error) {
	secret, err := b.client.Get(ctx, redisKey(service, identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", unavailable(fmt.Errorf("redis get: %w", err))
	}
	return secret, nil
}

// Write implements Backend. Secrets do not expire; the server decides token lifetime.
func (b *RedisBackend) Write(ctx context.Context, service, identity, secret string) error {
	if err := b.client.Set(ctx, redisKey(service, identity), secret, 0).Err(); err != nil {
		return unavailable(fmt.Errorf("redis set: %w", err))
	}
	return nil
}

// Delete implements Backend
func (b *RedisBackend) Delete(ctx context.Context, service, identity string) error {
	n, err := b.client.Del(ctx, redisKey(service, identity)).Result()
	if err != nil {
		return unavailable(fmt.Errorf("redis del: %w", err))
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying connection pool
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
