package cache

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/hotbags/backend/internal/domain"
)

// MemoryCache is a thread-safe in-memory metaobject cache. Entries never
// expire: a resolution stays valid until it is overwritten.
type MemoryCache struct {
	data  map[string]domain.MetaobjectCacheEntry
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]domain.MetaobjectCacheEntry),
	}
}

// Key builds the cache key for a (shop, type, normalized label) triple.
// Format: "hotbags:metaobject:{shop}:{type_handle}:{normalized_label}", each
// part query-escaped so a ":" inside a part cannot collide with the separator.
func Key(shop, typeHandle, normalizedLabel string) string {
	return strings.Join([]string{
		"hotbags", "metaobject",
		url.QueryEscape(shop),
		url.QueryEscape(typeHandle),
		url.QueryEscape(normalizedLabel),
	}, ":")
}

// Get retrieves an entry from the cache
func (c *MemoryCache) Get(ctx context.Context, shop, typeHandle, normalizedLabel string) (*domain.MetaobjectCacheEntry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.data[Key(shop, typeHandle, normalizedLabel)]
	if !exists {
		return nil, domain.ErrCacheMiss
	}
	return &entry, nil
}

// Upsert stores an entry, replacing any previous one for the same key
func (c *MemoryCache) Upsert(ctx context.Context, entry *domain.MetaobjectCacheEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[Key(entry.Shop, entry.TypeHandle, entry.NormalizedLabel)] = *entry
	return nil
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]domain.MetaobjectCacheEntry)
}
