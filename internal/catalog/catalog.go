package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is the read-only slice of catalog data the basket engine needs.
type Product struct {
	SKU   string          `json:"sku" db:"sku"`
	Name  string          `json:"name" db:"name"`
	Price decimal.Decimal `json:"price" db:"price"`
}

// Resolver looks up display data for a set of SKUs. An empty input yields an
// empty map; unknown SKUs are simply absent from the result. Callers treat a
// missing SKU as "no longer sellable" and drop it, they never fail on it.
type Resolver interface {
	Resolve(ctx context.Context, skus []string) (map[string]Product, error)
}
