package notification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, ttl), mr
}

func TestRedisIdempotencyStore_ReserveOnce(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "create_account:user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "create_account:user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("notification:sent:create_account:user-1"))
	assert.Equal(t, time.Hour, mr.TTL("notification:sent:create_account:user-1"))
}

func TestRedisIdempotencyStore_Expires(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "m-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	ok, err := store.Reserve(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisIdempotencyStore_Release(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "m-1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "m-1"))

	ok, err := store.Reserve(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	mr.Close()

	_, err := store.Reserve(context.Background(), "m-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve message m-1")
}

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := store.Reserve(ctx, "m-1")
	assert.True(t, ok)
	ok, _ = store.Reserve(ctx, "m-1")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = store.Reserve(ctx, "m-1")
	assert.True(t, ok, "expired claim can be taken again")

	require.NoError(t, store.Release(ctx, "m-1"))
	assert.Equal(t, 0, store.Len())
}
