package campuscms

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/campuscms/homecontent"
)

// contentLoader is the part of the engine the cache reads through.
type contentLoader interface {
	Load(ctx context.Context) (homecontent.Aggregate, error)
}

// ContentCache is an in-memory cache of the home page aggregate with TTL.
// The admin handlers invalidate it after every save.
type ContentCache struct {
	mu      sync.RWMutex
	content *homecontent.Aggregate
	fetched time.Time
	ttl     time.Duration
	loader  contentLoader
}

// NewContentCache creates a ContentCache reading through loader.
func NewContentCache(loader contentLoader, ttl time.Duration) *ContentCache {
	return &ContentCache{loader: loader, ttl: ttl}
}

func (c *ContentCache) valid() bool {
	return c.content != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.content = nil
	c.mu.Unlock()
}

// Get returns the cached aggregate, loading it when the cache is stale. It
// tries a read lock first and only takes the write lock to reload. Callers
// must not modify the returned value.
func (c *ContentCache) Get(ctx context.Context) (homecontent.Aggregate, error) {
	c.mu.RLock()
	if c.valid() {
		agg := *c.content
		c.mu.RUnlock()
		return agg, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return *c.content, nil
	}
	agg, err := c.loader.Load(ctx)
	if err != nil {
		return homecontent.Aggregate{}, err
	}
	c.content = &agg
	c.fetched = time.Now()
	return agg, nil
}
