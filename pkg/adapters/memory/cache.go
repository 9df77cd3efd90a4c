package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// Cache implements ports.Cache in memory. Expired entries are dropped lazily
// on read. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	items map[string]domain.CachedItem
	now   func() time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]domain.CachedItem), now: time.Now}
}

// Store writes a batch of items.
func (c *Cache) Store(ctx context.Context, items []domain.CachedItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		it.Value = append([]byte(nil), it.Value...)
		c.items[it.Key] = it
	}
	return nil
}

// Retrieve returns a live item.
func (c *Cache) Retrieve(ctx context.Context, key string) (domain.CachedItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return domain.CachedItem{}, domain.ErrCacheMiss
	}
	if !it.ExpireTime.IsZero() && !c.now().Before(it.ExpireTime) {
		delete(c.items, key)
		return domain.CachedItem{}, domain.ErrCacheMiss
	}
	it.Value = append([]byte(nil), it.Value...)
	return it, nil
}
