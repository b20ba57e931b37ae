package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDistributedLock_MutualExclusion(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	a := NewAssignLock(client, "E1")
	b := NewAssignLock(client, "E1")
	other := NewAssignLock(client, "E2")

	require.NoError(t, a.Lock(ctx, time.Millisecond, 1))

	ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, b.Lock(ctx, time.Millisecond, 3), ErrLockFailed)

	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per employee")

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedLock_UnlockKeepsForeignLease(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := NewAssignLock(client, "E1")
	require.NoError(t, a.Lock(ctx, time.Millisecond, 1))

	// a's lease expires and b takes over
	mr.FastForward(31 * time.Second)
	b := NewAssignLock(client, "E1")
	require.NoError(t, b.Lock(ctx, time.Millisecond, 1))

	require.NoError(t, a.Unlock(ctx))
	assert.True(t, mr.Exists(b.Key()), "a must not release b's lock")

	require.NoError(t, b.Unlock(ctx))
	assert.False(t, mr.Exists(b.Key()))
}

func TestDistributedLock_ContextCancelled(t *testing.T) {
	_, client := newRedis(t)
	holder := NewAssignLock(client, "E1")
	require.NoError(t, holder.Lock(context.Background(), time.Millisecond, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewAssignLock(client, "E1").Lock(ctx, time.Second, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
