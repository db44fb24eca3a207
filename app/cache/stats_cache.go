package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lastRunKey     = "jobengine:stats:last_run"
	lastCleanupKey = "jobengine:stats:last_cleanup"

	// Stats older than this are stale enough to drop on their own.
	statsTTL = 14 * 24 * time.Hour
)

// StatsCache persists the most recent run and cleanup stats in Redis so
// reporting survives process restarts. All methods are nil-safe: a nil
// *StatsCache is a no-op, which is how deployments without Redis run.
type StatsCache struct {
	client *redis.Client
}

// New connects to Redis at the given URL (redis://host:port) and verifies
// the connection.
func New(redisURL string) (*StatsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &StatsCache{client: client}, nil
}

func (c *StatsCache) SaveLastRun(ctx context.Context, stats interface{}) error {
	return c.save(ctx, lastRunKey, stats)
}

func (c *StatsCache) LoadLastRun(ctx context.Context, out interface{}) (bool, error) {
	return c.load(ctx, lastRunKey, out)
}

func (c *StatsCache) SaveLastCleanup(ctx context.Context, stats interface{}) error {
	return c.save(ctx, lastCleanupKey, stats)
}

func (c *StatsCache) LoadLastCleanup(ctx context.Context, out interface{}) (bool, error) {
	return c.load(ctx, lastCleanupKey, out)
}

func (c *StatsCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *StatsCache) save(ctx context.Context, key string, stats interface{}) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := c.client.Set(ctx, key, data, statsTTL).Err(); err != nil {
		return fmt.Errorf("failed to store stats: %w", err)
	}
	return nil
}

func (c *StatsCache) load(ctx context.Context, key string, out interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load stats: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return true, nil
}
