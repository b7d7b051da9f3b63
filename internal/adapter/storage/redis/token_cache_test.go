package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_GetMissing(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewTokenCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))

	tok, err := cache.Get(context.Background(), "paypal")
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestTokenCache_SetGetExpire(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewTokenCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "paypal", "A21AA-token", 10*time.Minute))

	tok, err := cache.Get(ctx, "paypal")
	require.NoError(t, err)
	assert.Equal(t, "A21AA-token", tok)

	s.FastForward(11 * time.Minute)

	tok, err = cache.Get(ctx, "paypal")
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestTokenCache_NonPositiveTTLIsIgnored(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewTokenCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "paypal", "short-lived", 0))
	assert.False(t, s.Exists("oauth:token:paypal"))
}

func TestTokenCache_RedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewTokenCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	s.Close()

	_, err := cache.Get(context.Background(), "paypal")
	assert.Error(t, err)
}

func TestTokenCache_Delete(t *testing.T) {
	s := miniredis.RunT(t)
	cache := NewTokenCache(goredis.NewClient(&goredis.Options{Addr: s.Addr()}))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "paypal", "A21AA-token", time.Hour))
	require.NoError(t, cache.Delete(ctx, "paypal"))
	assert.False(t, s.Exists("oauth:token:paypal"))

	tok, err := cache.Get(ctx, "paypal")
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, cache.Delete(ctx, "never-set"))
}
