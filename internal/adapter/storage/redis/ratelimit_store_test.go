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

func setupRateLimitStore(t *testing.T) (*RateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewRateLimitStore(client), mr
}

func TestRateLimitStore_CountsWithinWindow(t *testing.T) {
	store, _ := setupRateLimitStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		result, err := store.Allow(ctx, "1.2.3.4:reads", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(3), result.Limit)
		assert.Equal(t, 3-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "1.2.3.4:reads", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
}

func TestRateLimitStore_KeysAreIndependent(t *testing.T) {
	store, _ := setupRateLimitStore(t)
	ctx := context.Background()

	result, err := store.Allow(ctx, "1.2.3.4:enqueue", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = store.Allow(ctx, "1.2.3.4:enqueue", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// A different caller against the same group starts fresh.
	result, err = store.Allow(ctx, "5.6.7.8:enqueue", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimitStore_WindowExpiry(t *testing.T) {
	store, mr := setupRateLimitStore(t)
	ctx := context.Background()

	_, err := store.Allow(ctx, "client:reads", 5, time.Minute)
	require.NoError(t, err)

	// The counter key must carry a TTL so stale windows do not pile up.
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Positive(t, mr.TTL(keys[0]))
}

func TestRateLimitStore_ResetAtAlignsToWindow(t *testing.T) {
	store, _ := setupRateLimitStore(t)

	result, err := store.Allow(context.Background(), "client:stats", 10, time.Minute)
	require.NoError(t, err)

	now := time.Now().Unix()
	assert.Greater(t, result.ResetAt, now)
	assert.LessOrEqual(t, result.ResetAt, now+60)
}
