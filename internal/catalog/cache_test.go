package catalog_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/basket-service/internal/catalog"
)

type countingResolver struct {
	calls int64
	delay time.Duration

	mu       sync.Mutex
	products map[string]catalog.Product
}

func (r *countingResolver) Resolve(ctx context.Context, skus []string) (map[string]catalog.Product, error) {
	atomic.AddInt64(&r.calls, 1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]catalog.Product, len(skus))
	for _, sku := range skus {
		if p, ok := r.products[sku]; ok {
			result[sku] = p
		}
	}
	return result, nil
}

func testProducts() map[string]catalog.Product {
	return map[string]catalog.Product{
		"00012": {SKU: "00012", Name: "Dragon bread", Price: decimal.RequireFromString("50.00")},
		"00045": {SKU: "00045", Name: "Dragon milk", Price: decimal.RequireFromString("30.00")},
	}
}

func TestCachingResolver_CachesHits(t *testing.T) {
	inner := &countingResolver{products: testProducts()}
	cached := catalog.NewCachingResolver(inner, time.Minute)
	ctx := context.Background()

	first, err := cached.Resolve(ctx, []string{"00012", "00045"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := cached.Resolve(ctx, []string{"00012", "00045"})
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Equal(t, int64(1), atomic.LoadInt64(&inner.calls))
	assert.Equal(t, first["00012"].Name, second["00012"].Name)
}

func TestCachingResolver_ExpiresEntries(t *testing.T) {
	inner := &countingResolver{products: testProducts()}
	cached := catalog.NewCachingResolver(inner, 10*time.Millisecond)
	ctx := context.Background()

	_, err := cached.Resolve(ctx, []string{"00012"})
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = cached.Resolve(ctx, []string{"00012"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&inner.calls))
}

func TestCachingResolver_PartialHitFetchesOnlyMisses(t *testing.T) {
	inner := &countingResolver{products: testProducts()}
	cached := catalog.NewCachingResolver(inner, time.Minute)
	ctx := context.Background()

	_, err := cached.Resolve(ctx, []string{"00012"})
	require.NoError(t, err)

	result, err := cached.Resolve(ctx, []string{"00012", "00045"})
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, int64(2), atomic.LoadInt64(&inner.calls))
}

func TestCachingResolver_UnknownSKUsNotCached(t *testing.T) {
	inner := &countingResolver{products: testProducts()}
	cached := catalog.NewCachingResolver(inner, time.Minute)
	ctx := context.Background()

	result, err := cached.Resolve(ctx, []string{"nope"})
	require.NoError(t, err)
	assert.Empty(t, result)

	// The unknown SKU missed the cache again.
	_, err = cached.Resolve(ctx, []string{"nope"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&inner.calls))
}

func TestCachingResolver_CollapsesConcurrentMisses(t *testing.T) {
	inner := &countingResolver{products: testProducts(), delay: 30 * time.Millisecond}
	cached := catalog.NewCachingResolver(inner, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := cached.Resolve(ctx, []string{"00012", "00045"})
			assert.NoError(t, err)
			assert.Len(t, result, 2)
		}()
	}
	wg.Wait()

	// Same miss set from all goroutines collapses into few inner lookups.
	assert.LessOrEqual(t, atomic.LoadInt64(&inner.calls), int64(2))
}

func TestCachingResolver_EmptyInput(t *testing.T) {
	inner := &countingResolver{products: testProducts()}
	cached := catalog.NewCachingResolver(inner, time.Minute)

	result, err := cached.Resolve(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, result)
	assert.Equal(t, int64(0), atomic.LoadInt64(&inner.calls))
}
