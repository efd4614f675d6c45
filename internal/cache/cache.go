// Package cache is a small in-memory TTL cache used to keep the
// application-list and stats endpoints cheap between pipeline runs.
package cache

import (
	"sync"
	"time"
)

type item struct {
	data      interface{}
	expiresAt time.Time
}

// Cache is a TTL map safe for concurrent use.
type Cache struct {
	items map[string]item
	mutex sync.RWMutex
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{items: make(map[string]item)}
}

// Get returns the cached value if present and not expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	it, exists := c.items[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().After(it.expiresAt) {
		c.mutex.Lock()
		// Re-check under the write lock; Set may have refreshed it.
		if cur, ok := c.items[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mutex.Unlock()
		return nil, false
	}
	return it.data, true
}

// Set stores a value with a TTL.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items[key] = item{data: data, expiresAt: time.Now().Add(ttl)}
}

// Delete removes one key.
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Clear drops everything. Called after any pipeline run that mutates
// applications.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]item)
}
