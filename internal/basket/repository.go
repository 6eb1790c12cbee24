package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoOpenBasket     = errors.New("no open basket")
	ErrOpenBasketExists = errors.New("open basket already exists")
	ErrBasketNotFound   = errors.New("basket not found")
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx.
// Repository methods take it explicitly so the service layer decides the
// transaction boundary: every mutation runs on a pgx.Tx, reads may run on the
// pool directly.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	// FindOpen returns the owner's newest open basket without locking it.
	FindOpen(ctx context.Context, q Querier, ownerID int64) (*Basket, error)
	// FindOpenForUpdate locks the owner's newest open basket row for the rest
	// of the transaction, serializing concurrent mutations for one owner.
	FindOpenForUpdate(ctx context.Context, q Querier, ownerID int64) (*Basket, error)
	CreateOpen(ctx context.Context, q Querier, ownerID int64, items Items) (*Basket, error)
	UpdateItems(ctx context.Context, q Querier, basketID int64, items Items) error
	UpdateItemsAndStatus(ctx context.Context, q Querier, basketID int64, items Items, status Status) error
	UpdateStatus(ctx context.Context, q Querier, basketID int64, status Status) error
	// ListClosed returns the owner's orders and cleared baskets, basket ID ascending.
	ListClosed(ctx context.Context, q Querier, ownerID int64) ([]Basket, error)
}

type postgresRepository struct{}

func NewRepository() Repository {
	return &postgresRepository{}
}

func (r *postgresRepository) FindOpen(ctx context.Context, q Querier, ownerID int64) (*Basket, error) {
	return r.findOpen(ctx, q, ownerID, false)
}

func (r *postgresRepository) FindOpenForUpdate(ctx context.Context, q Querier, ownerID int64) (*Basket, error) {
	return r.findOpen(ctx, q, ownerID, true)
}

func (r *postgresRepository) findOpen(ctx context.Context, q Querier, ownerID int64, forUpdate bool) (*Basket, error) {
	// ORDER BY id DESC: legacy data may hold several open rows per owner,
	// the newest one wins.
	query := `
		SELECT id, owner_id, status, items, created_at, updated_at
		FROM baskets
		WHERE owner_id = $1 AND status = 'open'
		ORDER BY id DESC
		LIMIT 1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	b, err := scanBasket(q.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenBasket
		}
		return nil, fmt.Errorf("repository: failed to select open basket for owner %d: %w", ownerID, err)
	}

	return b, nil
}

func (r *postgresRepository) CreateOpen(ctx context.Context, q Querier, ownerID int64, items Items) (*Basket, error) {
	encoded, err := EncodeItems(items)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	query := `
		INSERT INTO baskets (owner_id, status, items)
		VALUES ($1, 'open', $2)
		ON CONFLICT (owner_id) WHERE status = 'open' DO NOTHING
		RETURNING id, owner_id, status, items, created_at, updated_at
	`

	b, err := scanBasket(q.QueryRow(ctx, query, ownerID, encoded))
	if err != nil {
		// No row back means a concurrent request created the open basket
		// first; the caller re-selects it under lock.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOpenBasketExists
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrOpenBasketExists
		}
		return nil, fmt.Errorf("repository: failed to insert open basket for owner %d: %w", ownerID, err)
	}

	return b, nil
}

func (r *postgresRepository) UpdateItems(ctx context.Context, q Querier, basketID int64, items Items) error {
	encoded, err := EncodeItems(items)
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	query := `
		UPDATE baskets
		SET items = $1, updated_at = now()
		WHERE id = $2
	`

	cmdTag, err := q.Exec(ctx, query, encoded, basketID)
	if err != nil {
		return fmt.Errorf("repository: failed to update items for basket %d: %w", basketID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBasketNotFound
	}

	return nil
}

func (r *postgresRepository) UpdateItemsAndStatus(ctx context.Context, q Querier, basketID int64, items Items, status Status) error {
	encoded, err := EncodeItems(items)
	if err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	query := `
		UPDATE baskets
		SET items = $1, status = $2, updated_at = now()
		WHERE id = $3
	`

	cmdTag, err := q.Exec(ctx, query, encoded, string(status), basketID)
	if err != nil {
		return fmt.Errorf("repository: failed to update basket %d: %w", basketID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBasketNotFound
	}

	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, q Querier, basketID int64, status Status) error {
	query := `
		UPDATE baskets
		SET status = $1, updated_at = now()
		WHERE id = $2
	`

	cmdTag, err := q.Exec(ctx, query, string(status), basketID)
	if err != nil {
		return fmt.Errorf("repository: failed to update status for basket %d: %w", basketID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBasketNotFound
	}

	return nil
}

func (r *postgresRepository) ListClosed(ctx context.Context, q Querier, ownerID int64) ([]Basket, error) {
	query := `
		SELECT id, owner_id, status, items, created_at, updated_at
		FROM baskets
		WHERE owner_id = $1 AND status IN ('orders', 'cleared')
		ORDER BY id ASC
	`

	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query closed baskets for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	baskets := make([]Basket, 0)
	for rows.Next() {
		b, err := scanBasket(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan closed basket for owner %d: %w", ownerID, err)
		}
		baskets = append(baskets, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating closed baskets for owner %d: %w", ownerID, err)
	}

	return baskets, nil
}

func scanBasket(row pgx.Row) (*Basket, error) {
	var (
		b      Basket
		status string
		items  string
	)
	err := row.Scan(&b.ID, &b.OwnerID, &status, &items, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.Status = Status(status)
	b.Items = DecodeItems(items)

	return &b, nil
}
