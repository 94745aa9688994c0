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

func setupStatsCache(t *testing.T, ttl time.Duration) (*StatsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewStatsCache(client, ttl), mr
}

func TestStatsCache_MissReturnsNilNil(t *testing.T) {
	cache, _ := setupStatsCache(t, 5*time.Second)

	val, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestStatsCache_SetThenGet(t *testing.T) {
	cache, _ := setupStatsCache(t, 5*time.Second)
	ctx := context.Background()

	snapshot := []byte(`{"total_items":12}`)
	require.NoError(t, cache.Set(ctx, snapshot))

	val, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, val)
}

func TestStatsCache_EntryExpires(t *testing.T) {
	cache, mr := setupStatsCache(t, 5*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, []byte(`{}`)))

	mr.FastForward(6 * time.Second)

	val, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, val, "expired snapshot should read as a miss")
}
