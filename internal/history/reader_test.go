package history_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/basket-service/internal/basket"
	"github.com/vasiliy-maslov/basket-service/internal/catalog"
	"github.com/vasiliy-maslov/basket-service/internal/history"
)

type mockBasketRepository struct {
	basket.Repository

	listClosedFunc func(ctx context.Context, q basket.Querier, ownerID int64) ([]basket.Basket, error)
}

func (m *mockBasketRepository) ListClosed(ctx context.Context, q basket.Querier, ownerID int64) ([]basket.Basket, error) {
	return m.listClosedFunc(ctx, q, ownerID)
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, skus []string) (map[string]catalog.Product, error)
}

func (m *mockResolver) Resolve(ctx context.Context, skus []string) (map[string]catalog.Product, error) {
	return m.resolveFunc(ctx, skus)
}

func TestReader_History(t *testing.T) {
	price := decimal.RequireFromString("50.00")

	repo := &mockBasketRepository{
		listClosedFunc: func(ctx context.Context, q basket.Querier, ownerID int64) ([]basket.Basket, error) {
			// Repository returns basket ID ascending.
			return []basket.Basket{
				{ID: 1, Status: basket.StatusOrders, Items: basket.Items{"00012": 2}},
				{ID: 2, Status: basket.StatusCleared, Items: basket.Items{"00045": 1, "00012": 3}},
				{ID: 3, Status: basket.StatusOrders, Items: basket.Items{}}, // legacy empty row, skipped
				{ID: 4, Status: basket.StatusOrders, Items: basket.Items{"00045": 2}},
			}, nil
		},
	}
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, skus []string) (map[string]catalog.Product, error) {
			return map[string]catalog.Product{
				"00012": {SKU: "00012", Name: "Dragon bread", Price: price},
				"00045": {SKU: "00045", Name: "Dragon milk", Price: decimal.RequireFromString("30.00")},
			}, nil
		},
	}

	reader := history.NewReader(nil, repo, resolver)

	hist, err := reader.History(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, hist.Orders, 2)
	require.Len(t, hist.Cleared, 1)

	assert.Equal(t, int64(1), hist.Orders[0].BasketID)
	assert.Equal(t, int64(4), hist.Orders[1].BasketID)
	assert.Equal(t, int64(2), hist.Cleared[0].BasketID)

	// Line items come back sorted by SKU.
	cleared := hist.Cleared[0].Items
	require.Len(t, cleared, 2)
	assert.Equal(t, "00012", cleared[0].SKU)
	assert.Equal(t, 3, cleared[0].Quantity)
	assert.Equal(t, "00045", cleared[1].SKU)
	assert.Equal(t, 1, cleared[1].Quantity)

	first := hist.Orders[0].Items
	require.Len(t, first, 1)
	assert.Equal(t, "Dragon bread", first[0].Name)
	assert.True(t, price.Equal(first[0].Price))
}

func TestReader_History_Empty(t *testing.T) {
	repo := &mockBasketRepository{
		listClosedFunc: func(ctx context.Context, q basket.Querier, ownerID int64) ([]basket.Basket, error) {
			return []basket.Basket{}, nil
		},
	}
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, skus []string) (map[string]catalog.Product, error) {
			return map[string]catalog.Product{}, nil
		},
	}

	reader := history.NewReader(nil, repo, resolver)

	hist, err := reader.History(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, hist.Orders)
	assert.Empty(t, hist.Cleared)
}

func TestReader_History_UnknownSKUsDropped(t *testing.T) {
	repo := &mockBasketRepository{
		listClosedFunc: func(ctx context.Context, q basket.Querier, ownerID int64) ([]basket.Basket, error) {
			return []basket.Basket{
				{ID: 1, Status: basket.StatusOrders, Items: basket.Items{"gone": 2, "00012": 1}},
			}, nil
		},
	}
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, skus []string) (map[string]catalog.Product, error) {
			return map[string]catalog.Product{
				"00012": {SKU: "00012", Name: "Dragon bread", Price: decimal.RequireFromString("50.00")},
			}, nil
		},
	}

	reader := history.NewReader(nil, repo, resolver)

	hist, err := reader.History(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, hist.Orders, 1)
	require.Len(t, hist.Orders[0].Items, 1)
	assert.Equal(t, "00012", hist.Orders[0].Items[0].SKU)
}

func TestReader_History_InvalidOwner(t *testing.T) {
	reader := history.NewReader(nil, &mockBasketRepository{}, &mockResolver{})

	hist, err := reader.History(context.Background(), 0)
	require.NoError(t, err)

	assert.Empty(t, hist.Orders)
	assert.Empty(t, hist.Cleared)
}
