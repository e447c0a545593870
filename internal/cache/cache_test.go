package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromRedis(rdb), mr
}

func TestClient_SetGetDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(2 * time.Minute)
	got, _ = c.Get(ctx, "k")
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "k2", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k2"))
	got, _ = c.Get(ctx, "k2")
	assert.Nil(t, got)
}

func TestClient_FailsSafeWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewFromRedis(rdb)
	ctx := context.Background()

	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, int64(0), c.Incr(ctx, "n"))
	assert.Error(t, c.Ping(ctx))
}

func TestClient_NilIsEmpty(t *testing.T) {
	var c *Client
	got, err := c.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, c.GetJSON(context.Background(), "k", &struct{}{}))
}

func TestClient_CounterAndJSON(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), c.Counter(ctx, "v"))
	assert.Equal(t, int64(1), c.Incr(ctx, "v"))
	assert.Equal(t, int64(1), c.Counter(ctx, "v"))

	c.SetJSON(ctx, "j", []string{"a", "b"}, time.Minute)
	var out []string
	require.True(t, c.GetJSON(ctx, "j", &out))
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestQueryKey(t *testing.T) {
	a := QueryKey("listings", map[string]string{"city": "Dubai", "location": "Marina"})
	b := QueryKey("listings", map[string]string{"location": "Marina", "city": "Dubai"})
	c := QueryKey("listings", map[string]string{"city": "Dubai", "location": ""})
	d := QueryKey("listings", map[string]string{"city": "Dubai"})

	assert.Equal(t, a, b)
	assert.Equal(t, c, d)
	assert.NotEqual(t, a, c)
}
