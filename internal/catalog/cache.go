package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	product   Product
	expiresAt time.Time
}

// CachingResolver is a cache-aside decorator around another Resolver. Each SKU
// is cached individually with a TTL; concurrent misses for the same SKU set
// are collapsed through singleflight so only one lookup hits the inner
// resolver. Negative results (unknown SKUs) are not cached.
//
// Checkout must not use this decorator: prices there are always fetched fresh.
type CachingResolver struct {
	inner Resolver
	ttl   time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry

	group singleflight.Group
	now   func() time.Time
}

func NewCachingResolver(inner Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		inner: inner,
		ttl:   ttl,
		items: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

func (c *CachingResolver) Resolve(ctx context.Context, skus []string) (map[string]Product, error) {
	result := make(map[string]Product, len(skus))

	var missing []string
	for _, sku := range skus {
		if p, ok := c.get(sku); ok {
			result[sku] = p
		} else {
			missing = append(missing, sku)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	sort.Strings(missing)
	key := strings.Join(missing, "\x00")

	resolved, err, _ := c.group.Do(key, func() (interface{}, error) {
		fetched, err := c.inner.Resolve(ctx, missing)
		if err != nil {
			return nil, err
		}
		for sku, p := range fetched {
			c.set(sku, p)
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	for sku, p := range resolved.(map[string]Product) {
		result[sku] = p
	}

	return result, nil
}

func (c *CachingResolver) get(sku string) (Product, bool) {
	c.mu.RLock()
	entry, ok := c.items[sku]
	c.mu.RUnlock()
	if !ok {
		return Product{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, sku)
		c.mu.Unlock()
		return Product{}, false
	}
	return entry.product, true
}

func (c *CachingResolver) set(sku string, p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[sku] = cacheEntry{product: p, expiresAt: c.now().Add(c.ttl)}
}
