// Package cache holds the in-process tier of the concept record cache.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kenoir/weco-concept-explorer/domain/concept"

	"go.uber.org/zap"
)

// MemoryCache is an LRU cache of concept records with per-item TTL and a
// memory ceiling. Records are stored serialised so callers never share
// mutable state through the cache.
type MemoryCache struct {
	mu          sync.Mutex
	items       map[string]*cacheItem
	lruList     *list.List
	maxItems    int
	maxMemory   int64
	currentSize int64

	hits      int64
	misses    int64
	evictions int64

	now    func() time.Time
	logger *zap.Logger
}

type cacheItem struct {
	key        string
	value      []byte
	size       int64
	expiry     time.Time
	lruElement *list.Element
}

// CacheStats holds cache statistics
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Items     int
	Size      int64
	HitRate   float64
}

// NewMemoryCache creates a cache bounded by item count and serialised size.
func NewMemoryCache(maxItems int, maxMemory int64, logger *zap.Logger) *MemoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryCache{
		items:     make(map[string]*cacheItem),
		lruList:   list.New(),
		maxItems:  maxItems,
		maxMemory: maxMemory,
		now:       time.Now,
		logger:    logger,
	}
}

// Get returns the cached record for id.
func (c *MemoryCache) Get(ctx context.Context, id string) (*concept.Record, bool, error) {
	c.mu.Lock()
	item, exists := c.items[id]
	if !exists {
		c.misses++
		c.mu.Unlock()
		return nil, false, nil
	}
	if c.now().After(item.expiry) {
		c.removeItem(item)
		c.misses++
		c.mu.Unlock()
		return nil, false, nil
	}
	c.lruList.MoveToFront(item.lruElement)
	c.hits++
	value := item.value
	c.mu.Unlock()

	var rec concept.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, false, fmt.Errorf("decode cached record %s: %w", id, err)
	}
	return &rec, true, nil
}

// Set stores a record for ttl. Records larger than the memory ceiling are
// skipped.
func (c *MemoryCache) Set(ctx context.Context, record *concept.Record, ttl time.Duration) error {
	if !record.IsUsable() {
		return nil
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := record.ID
	itemSize := int64(len(key) + len(value))
	if itemSize > c.maxMemory {
		c.logger.Warn("Record too large for cache",
			zap.String("conceptID", key),
			zap.Int64("size", itemSize),
			zap.Int64("maxMemory", c.maxMemory))
		return nil
	}

	if existing, ok := c.items[key]; ok {
		c.removeItem(existing)
	}

	for (c.currentSize+itemSize > c.maxMemory || len(c.items) >= c.maxItems) && c.lruList.Len() > 0 {
		oldest := c.lruList.Back()
		c.removeItem(oldest.Value.(*cacheItem))
		c.evictions++
	}

	item := &cacheItem{
		key:    key,
		value:  value,
		size:   itemSize,
		expiry: c.now().Add(ttl),
	}
	item.lruElement = c.lruList.PushFront(item)
	c.items[key] = item
	c.currentSize += itemSize
	return nil
}

// Delete removes a record from the cache
func (c *MemoryCache) Delete(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[id]; ok {
		c.removeItem(item)
	}
}

// removeItem must be called with the lock held
func (c *MemoryCache) removeItem(item *cacheItem) {
	if item.lruElement != nil {
		c.lruList.Remove(item.lruElement)
	}
	delete(c.items, item.key)
	c.currentSize -= item.size
}

// GetStats returns cache statistics
func (c *MemoryCache) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Items:     len(c.items),
		Size:      c.currentSize,
		HitRate:   hitRate,
	}
}

// StartCleanup removes expired records every interval until ctx is done.
func (c *MemoryCache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanupExpired()
			}
		}
	}()
}

func (c *MemoryCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, item := range c.items {
		if now.After(item.expiry) {
			c.removeItem(item)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Cleaned up expired cache items", zap.Int("count", removed))
	}
}
