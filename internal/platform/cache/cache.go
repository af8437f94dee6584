// Package cache stores JSON encoded read models in Redis and collapses
// concurrent loads of the same key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	group singleflight.Group
}

// New returns a cache backed by rdb. A nil rdb disables storage but keeps
// load deduplication.
func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// GetOrLoad returns the cached value for key or calls load and stores its
// result. Redis failures degrade to calling load.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return load(ctx)
	}
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			var cached T
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return cached, nil
			}
			slog.Warn("cache entry undecodable", "key", key)
		case !errors.Is(err, redis.Nil):
			slog.Warn("cache read failed", "key", key, "err", err)
		}
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	return value.(T), nil
}

func (c *Cache) store(ctx context.Context, key string, value any) {
	if c.rdb == nil {
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, key, string(encoded), c.ttl).Err(); err != nil {
		slog.Warn("cache write failed", "key", key, "err", err)
	}
}

func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache invalidate failed", "keys", keys, "err", err)
	}
}
