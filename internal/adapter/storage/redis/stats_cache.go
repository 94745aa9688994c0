package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const statsKey = "stats:snapshot"

// StatsCache implements ports.StatsCache using Redis. The stats aggregate
// is a full table scan, so dashboard polling reads this snapshot instead.
type StatsCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewStatsCache creates a new Redis-backed stats cache.
func NewStatsCache(client *goredis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// Get retrieves the cached stats snapshot. Returns nil, nil on miss.
func (c *StatsCache) Get(ctx context.Context) ([]byte, error) {
	val, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis stats get: %w", err)
	}
	return val, nil
}

// Set stores a stats snapshot with the configured TTL.
func (c *StatsCache) Set(ctx context.Context, value []byte) error {
	if err := c.client.Set(ctx, statsKey, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis stats set: %w", err)
	}
	return nil
}
