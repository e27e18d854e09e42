package template

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache is a read-mostly get-or-load cache over a Store. Concurrent misses for
// the same identifier share one store call.
type Cache struct {
	store  Store
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Template
	// versions and epoch are bumped by Invalidate and Clear. A load that
	// started before a bump does not store its result.
	versions map[string]uint64
	epoch    uint64
	group    singleflight.Group
	loads    atomic.Int64
}

// NewCache creates a cache in front of store.
func NewCache(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:    store,
		logger:   logger,
		entries:  make(map[string]Template),
		versions: make(map[string]uint64),
	}
}

// Get returns the template from cache or loads it from the store. Misses are
// not cached, so a template saved later by another instance is found.
func (c *Cache) Get(ctx context.Context, identifier string) (Template, error) {
	c.mu.RLock()
	t, ok := c.entries[identifier]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.group.Do(identifier, func() (any, error) {
		c.mu.RLock()
		t, ok := c.entries[identifier]
		version, epoch := c.versions[identifier], c.epoch
		c.mu.RUnlock()
		if ok {
			return t, nil
		}

		c.loads.Add(1)
		t, err := c.store.Load(ctx, identifier)
		if err != nil {
			return Template{}, err
		}

		c.mu.Lock()
		fresh := c.versions[identifier] == version && c.epoch == epoch
		if fresh {
			c.entries[identifier] = t
		}
		c.mu.Unlock()
		if !fresh {
			c.logger.Debug("template invalidated during load", slog.String("template", identifier))
			return t, nil
		}
		c.logger.Debug("template cached", slog.String("template", identifier))
		return t, nil
	})
	if err != nil {
		return Template{}, err
	}
	return v.(Template), nil
}

// Invalidate drops one identifier. A load already in flight still answers
// its callers but is not cached, and later Gets start a new load.
func (c *Cache) Invalidate(identifier string) {
	c.mu.Lock()
	delete(c.entries, identifier)
	c.versions[identifier]++
	c.mu.Unlock()
	c.group.Forget(identifier)
}

// Clear drops every cached template.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]Template)
	c.epoch++
	c.mu.Unlock()
	c.logger.Debug("template cache cleared", slog.Int("entries", n))
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Loads returns how many store loads the cache has performed.
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}
