// Package query is a read-through cache for API queries.
//
// Reads go through Fetch, which de-duplicates concurrent requests for the
// same key and stores the result wholesale. Writes go through Mutate, which
// invalidates the affected keys once the mutation has succeeded.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/campus/internal/pkg/ctxlog"
	"github.com/bissquit/campus/internal/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 5 * time.Minute

// Config holds cache configuration.
type Config struct {
	TTL time.Duration
}

// Cache is a keyed query cache on top of a Store.
type Cache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group

	mu    sync.Mutex
	epoch uint64
	// invalidatedAt records the epoch of the last invalidation per key.
	invalidatedAt map[string]uint64
}

// New creates a cache. A nil store means an in-memory store.
func New(store Store, config Config) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	return &Cache{
		store:         store,
		ttl:           config.TTL,
		invalidatedAt: make(map[string]uint64),
	}
}

// Fetch returns the cached value for key or runs fn to produce it.
// Concurrent Fetch calls for the same key share one fn invocation.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.load(ctx, key, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

// Mutate runs fn and, only if it succeeds, invalidates each key once.
func Mutate[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), keys ...Key) (T, error) {
	out, err := fn(ctx)
	if err != nil {
		return out, err
	}
	for _, key := range keys {
		if err := c.Invalidate(ctx, key); err != nil {
			ctxlog.FromContext(ctx).Error("failed to invalidate query", "key", key.String(), "error", err)
		}
	}
	return out, nil
}

// Invalidate discards key and every key below it. Fetches already in
// flight for those keys still answer their callers but are not stored.
func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	c.mu.Lock()
	c.epoch++
	c.invalidatedAt[key.String()] = c.epoch
	c.mu.Unlock()

	metrics.QueryCacheInvalidations.WithLabelValues(key.Root()).Inc()

	if err := c.store.DeletePrefix(ctx, key.String()); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

// Purge discards every entry.
func (c *Cache) Purge(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	// an empty key prefixes everything
	c.invalidatedAt[""] = c.epoch
	c.mu.Unlock()

	if err := c.store.Flush(ctx); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

func (c *Cache) load(ctx context.Context, key Key, fn func(context.Context) (interface{}, error)) ([]byte, error) {
	storeKey := key.String()

	data, err := c.store.Get(ctx, storeKey)
	switch {
	case err == nil:
		metrics.QueryCacheLookups.WithLabelValues("hit").Inc()
		return data, nil
	case errors.Is(err, ErrNotFound):
		metrics.QueryCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.QueryCacheLookups.WithLabelValues("error").Inc()
		ctxlog.FromContext(ctx).Warn("query cache read failed, fetching", "key", storeKey, "error", err)
	}

	// the shared fetch outlives any single caller; each caller still
	// stops waiting when its own context is done
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(storeKey, func() (interface{}, error) {
		started := c.currentEpoch()

		value, err := fn(shared)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", storeKey, err)
		}

		if c.invalidatedSince(key, started) {
			ctxlog.FromContext(shared).Debug("query invalidated while in flight, not caching", "key", storeKey)
			return encoded, nil
		}
		if err := c.store.Set(shared, storeKey, encoded, c.ttl); err != nil {
			ctxlog.FromContext(shared).Warn("query cache write failed", "key", storeKey, "error", err)
			return encoded, nil
		}
		// an invalidation that raced the write may have deleted before it
		if c.invalidatedSince(key, started) {
			if err := c.store.DeletePrefix(shared, storeKey); err != nil {
				ctxlog.FromContext(shared).Warn("query cache rollback failed", "key", storeKey, "error", err)
			}
		}
		return encoded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// invalidatedSince reports whether key or any of its prefixes was
// invalidated after epoch.
func (c *Cache) invalidatedSince(key Key, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalidatedAt[""] > epoch {
		return true
	}
	for i := 1; i <= len(key); i++ {
		if c.invalidatedAt[key[:i].String()] > epoch {
			return true
		}
	}
	return false
}
