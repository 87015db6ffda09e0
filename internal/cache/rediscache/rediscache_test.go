package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "vinbox:")

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.True(t, mr.Exists("vinbox:k"))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Ping(ctx))
}

func TestRedisCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "")

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "fail", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "ok", []byte("y"), 0))

	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "fail")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.Get(ctx, "ok")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisCache_Error(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "")
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis get")
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr(), 0)

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}

func TestRateLimiter_AllowUpstream(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr(), 1)
	rl.now = func() time.Time { return time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC) }

	ctx := context.Background()
	ok, err := rl.AllowUpstream(ctx, "vpic")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("rl:upstream:vpic:202501011030"))

	ok, err = rl.AllowUpstream(ctx, "vpic")
	require.NoError(t, err)
	require.False(t, ok)

	unlimited := NewRateLimiter(mr.Addr(), 0)
	for i := 0; i < 5; i++ {
		ok, err = unlimited.AllowUpstream(ctx, "vpic")
		require.NoError(t, err)
		require.True(t, ok)
	}
}
