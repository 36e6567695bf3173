// Package cache provides an in-process key/value store with TTL expiry
// and single-flight get-or-create semantics.
//
// Report computation is expensive (joins and aggregates over the whole
// scoped dataset), so every read path goes through this cache. The
// single-flight guarantee means a burst of identical dashboard requests
// evaluates the factory exactly once; all concurrent callers share the
// result. Flight state is per key: unrelated keys never serialize on
// each other.
//
// The cache is in-process synchronization only. A deployment with
// multiple instances would need a distributed equivalent.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is a stored value with an absolute expiry instant.
type entry struct {
	value     any
	expiresAt time.Time
}

// expired reports whether the entry is past its expiry at the given instant.
func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a TTL key/value store safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
	logger  *slog.Logger
	// now is overridable for expiry tests.
	now func() time.Time
}

// New creates an empty cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]entry),
		logger:  logger.With(slog.String("component", "cache")),
		now:     time.Now,
	}
}

// Get returns the value stored under key, or false if the key is absent
// or expired. Expired entries are evicted lazily on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL, replacing any existing
// entry. Callers must treat stored values as immutable snapshots.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Remove deletes a single key.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// RemoveByPrefix deletes every key with the given string prefix. Writes
// to an entity class invalidate its whole reporting namespace this way
// (e.g. "report:tasks:") because the key space is parameterized by
// filters and cannot be enumerated at write time.
func (c *Cache) RemoveByPrefix(prefix string) {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.logger.Debug("invalidated cache namespace",
		slog.String("prefix", prefix),
		slog.Int("removed", removed))
}

// Len returns the number of stored entries, including any not yet
// lazily evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the typed value stored under key. A stored value of a
// different type is treated as a miss.
func Get[T any](c *Cache, key string) (T, bool) {
	var zero T
	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

// GetOrCreateSafe returns the value under key, evaluating factory to
// create and cache it on a miss. Under N concurrent calls with the same
// key the factory runs exactly once; every caller receives the same
// value, and the value is cached for ttl before any caller is released.
// A factory error propagates to all waiting callers and nothing is cached.
func GetOrCreateSafe[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func(ctx context.Context) (T, error)) (T, error) {
	if value, ok := Get[T](c, key); ok {
		return value, nil
	}
	return createShared(ctx, c, key, ttl, factory)
}

// GetOrCreateNullable is GetOrCreateSafe for factories that may yield an
// absent value. A nil result is returned to all waiting callers but is
// not cached, so "not found" is re-evaluated on the next call instead of
// being remembered indefinitely.
func GetOrCreateNullable[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func(ctx context.Context) (*T, error)) (*T, error) {
	if value, ok := Get[*T](c, key); ok {
		return value, nil
	}

	raw, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a previous flight may have already
		// populated the entry.
		if value, ok := Get[*T](c, key); ok {
			return value, nil
		}
		value, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		if value != nil {
			c.Set(key, value, ttl)
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return raw.(*T), nil
}

// createShared runs the factory inside a per-key single flight. The
// result is stored before Do returns, so the cache is populated before
// any waiter observes the value.
func createShared[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func(ctx context.Context) (T, error)) (T, error) {
	raw, err, _ := c.group.Do(key, func() (any, error) {
		if value, ok := Get[T](c, key); ok {
			return value, nil
		}
		value, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, value, ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return raw.(T), nil
}
