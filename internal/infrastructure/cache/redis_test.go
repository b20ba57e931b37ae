package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"gomonate/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct {
	Employees int64 `json:"employees"`
}

func TestJSONCache_RoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewJSONCache(client, "gomonate:")
	ctx := context.Background()

	var got stats
	hit, err := c.Get(ctx, "stats", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "stats", stats{Employees: 42}, time.Minute))
	assert.True(t, mr.Exists("gomonate:stats"))

	hit, err = c.Get(ctx, "stats", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(42), got.Employees)

	mr.FastForward(2 * time.Minute)
	hit, err = c.Get(ctx, "stats", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "stats", stats{Employees: 1}, time.Minute))
	require.NoError(t, c.Delete(ctx, "stats"))
	assert.False(t, mr.Exists("gomonate:stats"))
}

func TestJSONCache_NilClientIsNoop(t *testing.T) {
	c := NewJSONCache(nil, "x:")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	var v int
	hit, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, c.Delete(ctx, "k"))
}

func TestInitRedis(t *testing.T) {
	ctx := context.Background()

	client, err := InitRedis(ctx, &config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = InitRedis(ctx, &config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mustPort(t, mr)})
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
