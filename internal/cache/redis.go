// Package cache provides Redis cache-aside helpers. A nil *Cache, or one
// without a client, caches nothing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	TagsKey         = "tags:all"
	TopStoresPrefix = "stores:top:"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// TopStoresKey is the cache key for a top-stores ranking of the given size.
func TopStoresKey(limit int) string {
	return fmt.Sprintf("%s%d", TopStoresPrefix, limit)
}

// Cache stores JSON values in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps client. client may be nil.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Connect dials addr, which is either host:port or a redis:// URL, and
// pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL %q: %w", addr, err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Enabled reports whether the cache is backed by Redis.
func (c *Cache) Enabled() bool {
	return c.enabled()
}

// Ping checks the Redis connection. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// GetJSON unmarshals key into dest. It reports false when the key is absent.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	s, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and stores it under key with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, c.ttl).Err()
}

// Aside serves key from Redis, or calls fetch to fill dest and stores the
// result. Redis failures degrade to calling fetch.
func (c *Cache) Aside(ctx context.Context, key string, dest any, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := c.SetJSON(ctx, key, dest); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return nil
}

// Invalidate deletes keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

// InvalidatePrefix deletes every key starting with prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if !c.enabled() {
		return
	}
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("prefix", prefix).Msg("cache scan failed")
		return
	}
	c.Invalidate(ctx, keys...)
}

// InvalidateStores drops everything derived from store or review data.
func (c *Cache) InvalidateStores(ctx context.Context) {
	c.Invalidate(ctx, TagsKey)
	c.InvalidatePrefix(ctx, TopStoresPrefix)
}
