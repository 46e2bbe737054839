package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/pseudotv/pseudotv/internal/models"
)

// FetchFunc resolves a fresh descriptor list for a cache key.
type FetchFunc func(ctx context.Context) ([]models.VideoDescriptor, error)

// cacheEntry is an immutable snapshot of one resolved list.
type cacheEntry struct {
	videos    []models.VideoDescriptor
	fetchedAt time.Time
}

// Cache is a TTL-keyed store of resolved source video lists. Entries are
// immutable value snapshots, so concurrent fetches for the same stale key
// may race and both populate it; last write wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	// now is injectable for tests.
	now func() time.Time
}

// NewCache creates an empty metadata cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// WithClock overrides the cache's clock. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the cached list for key when it is younger than ttl, otherwise
// invokes fetch and stores the result. A ttl of zero (or less) always
// bypasses the cache: fetch runs on every call and nothing is stored.
//
// The second return reports whether the list came from the cache.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]models.VideoDescriptor, bool, error) {
	if ttl <= 0 {
		videos, err := fetch(ctx)
		return videos, false, err
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < ttl {
		return entry.videos, true, nil
	}

	videos, err := fetch(ctx)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{videos: videos, fetchedAt: c.now()}
	c.mu.Unlock()

	return videos, false, nil
}

// Invalidate drops the entry for key, forcing the next Get to refetch.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
