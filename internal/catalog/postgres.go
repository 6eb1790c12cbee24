package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresResolver struct {
	db *pgxpool.Pool
}

// NewPostgresResolver returns a Resolver backed by the products table.
func NewPostgresResolver(db *pgxpool.Pool) Resolver {
	return &postgresResolver{db: db}
}

func (r *postgresResolver) Resolve(ctx context.Context, skus []string) (map[string]Product, error) {
	result := make(map[string]Product, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	query := `
		SELECT sku, name, price
		FROM products
		WHERE sku = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, skus)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan product: %w", err)
		}
		result[p.SKU] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating products: %w", err)
	}

	return result, nil
}
