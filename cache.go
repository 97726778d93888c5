package dbrest

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache is the interface for persisting reflected schema metadata.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies one reflected schema entry.
type CacheKey struct {
	Prefix string
	Kind   string // "table" or "database"
	Name   string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Prefix + k.Kind + ":" + k.Name
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get implements the Cache interface. Expired entries read as missing.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}
	return e.value, nil
}

// Set implements the Cache interface.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Delete implements the Cache interface.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// DeletePrefix implements the Cache interface.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	return nil
}

// Clear implements the Cache interface.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NopCache is a Cache that stores nothing.
type NopCache struct{}

// Get implements the Cache interface.
func (NopCache) Get(context.Context, string) ([]byte, error) { return nil, nil }

// Set implements the Cache interface.
func (NopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete implements the Cache interface.
func (NopCache) Delete(context.Context, string) error { return nil }

// DeletePrefix implements the Cache interface.
func (NopCache) DeletePrefix(context.Context, string) error { return nil }

// Clear implements the Cache interface.
func (NopCache) Clear(context.Context) error { return nil }
