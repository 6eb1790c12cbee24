package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/vasiliy-maslov/basket-service/internal/basket"
	"github.com/vasiliy-maslov/basket-service/internal/catalog"
)

// ClosedBasket is one terminated basket projected for display.
type ClosedBasket struct {
	BasketID int64             `json:"basket_id"`
	Items    []basket.LineItem `json:"items"`
}

// History groups an owner's closed baskets by final status.
type History struct {
	Orders  []ClosedBasket `json:"orders"`
	Cleared []ClosedBasket `json:"cleared"`
}

// Reader is a read-only projection over orders and cleared baskets. It never
// transitions state and needs no transaction.
type Reader interface {
	History(ctx context.Context, ownerID int64) (*History, error)
}

type reader struct {
	db      basket.Querier
	baskets basket.Repository
	catalog catalog.Resolver
}

func NewReader(db basket.Querier, baskets basket.Repository, resolver catalog.Resolver) Reader {
	return &reader{db: db, baskets: baskets, catalog: resolver}
}

func (r *reader) History(ctx context.Context, ownerID int64) (*History, error) {
	result := &History{
		Orders:  make([]ClosedBasket, 0),
		Cleared: make([]ClosedBasket, 0),
	}

	if ownerID <= 0 {
		return result, nil
	}

	closed, err := r.baskets.ListClosed(ctx, r.db, ownerID)
	if err != nil {
		return nil, fmt.Errorf("history: failed to list closed baskets: %w", err)
	}

	// One catalog round-trip for every SKU across all baskets.
	seen := make(map[string]struct{})
	skus := make([]string, 0)
	for _, b := range closed {
		for sku := range b.Items {
			if _, ok := seen[sku]; ok {
				continue
			}
			seen[sku] = struct{}{}
			skus = append(skus, sku)
		}
	}

	products, err := r.catalog.Resolve(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("history: failed to resolve products: %w", err)
	}

	for _, b := range closed {
		// Legacy rows can hold an empty or unparsable items payload.
		if len(b.Items) == 0 {
			continue
		}

		items := make([]basket.LineItem, 0, len(b.Items))
		for sku, qty := range b.Items {
			p, ok := products[sku]
			if !ok {
				continue
			}
			items = append(items, basket.LineItem{
				SKU:      sku,
				Name:     p.Name,
				Price:    p.Price,
				Quantity: qty,
			})
		}

		sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })

		entry := ClosedBasket{BasketID: b.ID, Items: items}

		switch b.Status {
		case basket.StatusOrders:
			result.Orders = append(result.Orders, entry)
		case basket.StatusCleared:
			result.Cleared = append(result.Cleared, entry)
		}
	}

	return result, nil
}
