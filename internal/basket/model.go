package basket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusOrders    Status = "orders"
	StatusCleared   Status = "cleared"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status accepts no further mutations.
func (s Status) Terminal() bool {
	return s == StatusOrders || s == StatusCleared || s == StatusCancelled
}

// Items maps a product SKU to its quantity in the basket. Quantities in a
// persisted map are always positive; a quantity reaching zero removes the key.
type Items map[string]int

type Basket struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Status    Status    `json:"status" db:"status"`
	Items     Items     `json:"items" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LineItem is the display-ready projection of one basket entry. It is derived
// by joining the items map against the catalog and is never authoritative.
type LineItem struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// EncodeItems serializes the items map to the persisted JSON object form.
// Entries with non-positive quantities are dropped; an empty map encodes as {}.
func EncodeItems(items Items) (string, error) {
	clean := make(Items, len(items))
	for sku, qty := range items {
		if qty > 0 {
			clean[sku] = qty
		}
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("basket: failed to encode items: %w", err)
	}

	return string(raw), nil
}

// DecodeItems parses the persisted JSON object back into an items map. An
// empty payload decodes as an empty map. Legacy rows may hold garbage instead
// of an object; those decode as empty too rather than failing the whole read.
func DecodeItems(raw string) Items {
	if raw == "" {
		return Items{}
	}

	var items Items
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return Items{}
	}
	if items == nil {
		return Items{}
	}

	return items
}
