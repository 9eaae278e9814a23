package db

import (
	"fmt"

	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/weights"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the table count kept by a CachedLoader when no size
// is configured.
const DefaultCacheSize = 64

// CachedLoader memoises another loader. Tables are immutable so cached
// entries never go stale unless the underlying row is replaced; call
// Invalidate after saving.
type CachedLoader struct {
	next  weights.TableLoader
	cache *lru.Cache[string, *calib.Table]
}

// NewCachedLoader wraps next with an LRU of the given size.
func NewCachedLoader(next weights.TableLoader, size int) (*CachedLoader, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *calib.Table](size)
	if err != nil {
		return nil, fmt.Errorf("create table cache: %w", err)
	}
	return &CachedLoader{next: next, cache: c}, nil
}

// LoadTable implements weights.TableLoader. Errors are not cached.
func (c *CachedLoader) LoadTable(id string) (*calib.Table, error) {
	if t, ok := c.cache.Get(id); ok {
		return t, nil
	}
	t, err := c.next.LoadTable(id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, t)
	return t, nil
}

// Invalidate drops id from the cache.
func (c *CachedLoader) Invalidate(id string) { c.cache.Remove(id) }

// Len returns the number of cached tables.
func (c *CachedLoader) Len() int { return c.cache.Len() }
