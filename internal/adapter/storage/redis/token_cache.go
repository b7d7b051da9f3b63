package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TokenCache implements ports.AccessTokenCache using Redis string keys.
type TokenCache struct {
	client *goredis.Client
	prefix string
}

// NewTokenCache creates a new Redis-backed access token cache.
func NewTokenCache(client *goredis.Client) *TokenCache {
	return &TokenCache{
		client: client,
		prefix: "oauth:token:",
	}
}

// Get returns the cached token, or "" if the key does not exist.
func (c *TokenCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis token get: %w", err)
	}
	return val, nil
}

// Set stores a token with TTL. Non-positive TTLs are ignored.
func (c *TokenCache) Set(ctx context.Context, key string, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.prefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis token set: %w", err)
	}
	return nil
}

// Delete drops a token the provider no longer accepts.
func (c *TokenCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis token delete: %w", err)
	}
	return nil
}
