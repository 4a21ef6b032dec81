// Package cache keeps raw engine results in Redis so repeated searches skip
// the browser.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmylchreest/prospector/pkg/prospect"
)

const DefaultPrefix = "prospector:results:"

// Cache is a Redis-backed engine.ResultCache.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis at redisURL (redis://host:6379/0) and checks the
// connection.
func New(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return NewWithClient(client, prefix, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached results for key. A miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) ([]prospect.RawResult, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var results []prospect.RawResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, fmt.Errorf("cache: corrupt entry %s: %w", key, err)
	}
	return results, true, nil
}

// Set stores results under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, results []prospect.RawResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("cache: marshal error: %w", err)
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
