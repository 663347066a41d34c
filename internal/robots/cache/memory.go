package cache

import "sync"

// MemoryCache is an in-memory implementation of the Cache interface.
// It uses a map for storage and provides thread-safe operations via
// RWMutex. Expired entries are overwritten on the next Put; there is no
// background eviction.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewMemoryCache creates a new in-memory cache instance.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]Entry),
	}
}

func (c *MemoryCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	return entry, exists
}

func (c *MemoryCache) Put(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = entry
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// Size returns the number of entries in the cache.
// This method is primarily useful for testing and diagnostics.
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}
