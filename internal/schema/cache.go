package schema

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CacheKey identifies one table on one logical connection.
type CacheKey struct {
	ConnectionID string
	Schema       string
	Table        string
}

func (k CacheKey) flightKey() string {
	return fmt.Sprintf("%q|%q|%q", k.ConnectionID, k.Schema, k.Table)
}

// Cache memoises metadata from an underlying Source. It is owned by a table
// view and dropped with it; concurrent misses for the same key share a
// single catalog round-trip.
type Cache struct {
	src Source

	mu      sync.RWMutex
	entries map[CacheKey]*TableMetadata
	group   singleflight.Group
}

// NewCache wraps src.
func NewCache(src Source) *Cache {
	return &Cache{src: src, entries: make(map[CacheKey]*TableMetadata)}
}

// Fetch returns cached metadata, loading it on a miss. Failures are not cached.
func (c *Cache) Fetch(ctx context.Context, connectionID, schema, table string) (*TableMetadata, error) {
	key := CacheKey{ConnectionID: connectionID, Schema: schema, Table: table}

	c.mu.RLock()
	md, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return md, nil
	}

	v, err, _ := c.group.Do(key.flightKey(), func() (any, error) {
		md, err := c.src.Fetch(ctx, connectionID, schema, table)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = md
		c.mu.Unlock()
		return md, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TableMetadata), nil
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]*TableMetadata)
}

// Len reports the number of cached tables.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Source = (*Cache)(nil)
