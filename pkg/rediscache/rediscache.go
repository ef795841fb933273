// Package rediscache stores rendered card fragments in Redis so several
// instances can share one HTML cache.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lepinkainen/smart-url-view/pkg/dbinterfaces"
)

const (
	// scanBatch is the COUNT hint passed to SCAN.
	scanBatch = 500
	// DefaultCooldown is how long Get and Set fail fast after a connection error.
	DefaultCooldown = 30 * time.Second
)

// ErrUnavailable is returned by Get and Set while the server is cooling down
// after a connection error.
var ErrUnavailable = errors.New("redis unavailable")

// Cache handles interactions with Redis for the HTML fragment cache.
type Cache struct {
	client *redis.Client
	// prefix limits Stats to the keys this application writes.
	prefix   string
	cooldown time.Duration
	// downUntil is a unix nano deadline, zero while the server is healthy.
	downUntil atomic.Int64
}

var (
	_ dbinterfaces.Database      = (*Cache)(nil)
	_ dbinterfaces.StatsProvider = (*Cache)(nil)
)

// New connects to the Redis server at addr. statsPrefix selects the keys
// counted by Stats.
func New(addr, statsPrefix string) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   1,
	})
	return NewWithClient(rdb, statsPrefix)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, statsPrefix string) *Cache {
	return &Cache{client: client, prefix: statsPrefix, cooldown: DefaultCooldown}
}

// Ping checks the connection. It always reaches out to the server and
// resets the cooldown on success.
func (c *Cache) Ping(ctx context.Context) error {
	err := c.client.Ping(ctx).Err()
	if err != nil {
		c.observe(err)
		return err
	}
	c.downUntil.Store(0)
	return nil
}

// available reports whether Get and Set may contact the server.
func (c *Cache) available() bool {
	until := c.downUntil.Load()
	return until == 0 || time.Now().UnixNano() >= until
}

// observe starts a cooldown when err is a connection failure. Server replies
// and caller cancellation leave the state alone.
func (c *Cache) observe(err error) {
	var reply redis.Error
	if errors.As(err, &reply) || errors.Is(err, context.Canceled) {
		return
	}
	if c.available() {
		slog.Warn("Redis unreachable, skipping cache", "cooldown", c.cooldown, "error", err)
	}
	c.downUntil.Store(time.Now().Add(c.cooldown).UnixNano())
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the cached value. A missing key is a miss, not an error.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if !c.available() {
		return "", false, ErrUnavailable
	}
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		c.observe(err)
		return "", false, fmt.Errorf("failed to get cache value: %w", err)
	}
	return val, true, nil
}

// Set stores value with the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if !c.available() {
		return ErrUnavailable
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.observe(err)
		return fmt.Errorf("failed to set cache value: %w", err)
	}
	return nil
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// DeleteByPrefix removes every key starting with prefix using SCAN, so the
// server is never blocked by a KEYS call.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var removed int64
	var batch []string

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += n
		batch = batch[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatch {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("failed to delete cache prefix %q: %w", prefix, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cache prefix %q: %w", prefix, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("failed to delete cache prefix %q: %w", prefix, err)
	}

	slog.Debug("Deleted cache entries by prefix", "backend", "redis", "prefix", prefix, "count", removed)
	return removed, nil
}

// Stats counts the keys under the stats prefix. Redis expires keys itself,
// so every counted key is valid.
func (c *Cache) Stats(ctx context.Context) (dbinterfaces.CacheStats, error) {
	stats := dbinterfaces.CacheStats{Backend: "redis"}

	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		stats.Total++
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("failed to count cache keys: %w", err)
	}
	stats.Valid = stats.Total
	return stats, nil
}
