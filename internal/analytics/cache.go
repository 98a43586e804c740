package analytics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache memoizes derived aggregates across requests. Entries are grouped by
// scope (normally the user id) and stay valid until Invalidate is called for
// that scope; callers must invalidate after any change to the transactions.
type Cache struct {
	store *ristretto.Cache[string, any]

	mu   sync.Mutex
	keys map[string]map[string]struct{} // scope -> keys
}

// NewCache builds a cache holding up to maxEntries aggregates.
func NewCache(maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// cost is counted in entries
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("NewCache: %w", err)
	}
	return &Cache{store: rc, keys: make(map[string]map[string]struct{})}, nil
}

func (c *Cache) get(key string) (any, bool) {
	return c.store.Get(key)
}

func (c *Cache) set(scope, key string, v any) {
	c.mu.Lock()
	if c.keys[scope] == nil {
		c.keys[scope] = make(map[string]struct{})
	}
	c.keys[scope][key] = struct{}{}
	c.mu.Unlock()

	c.store.Set(key, v, 1)
	c.store.Wait()
}

// Invalidate drops every entry of scope.
func (c *Cache) Invalidate(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.keys[scope] {
		c.store.Del(key)
	}
	delete(c.keys, scope)
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Clear()
	c.keys = make(map[string]map[string]struct{})
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.store.Close()
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

// memo returns the cached value for metric or computes and stores it.
func memo[T any](a *Aggregator, metric string, compute func() T) T {
	if a.cache == nil {
		return compute()
	}
	key := cacheKey(a.scope, a.viewKey, metric)
	if v, ok := a.cache.get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	v := compute()
	a.cache.set(a.scope, key, v)
	return v
}
