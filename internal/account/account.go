package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrAccountNotFound = errors.New("account not found")

// Querier is the subset of pgx both *pgxpool.Pool and pgx.Tx satisfy. Balance
// reads and writes during checkout must run on the checkout transaction, so
// every method takes the querier explicitly instead of owning a pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and conditionally updates the per-owner account balance.
type Store interface {
	Balance(ctx context.Context, q Querier, ownerID int64) (decimal.Decimal, error)
	// BalanceForUpdate locks the account row for the rest of the transaction.
	BalanceForUpdate(ctx context.Context, q Querier, ownerID int64) (decimal.Decimal, error)
	SetBalance(ctx context.Context, q Querier, ownerID int64, balance decimal.Decimal) error
}

type postgresStore struct{}

func NewStore() Store {
	return &postgresStore{}
}

func (s *postgresStore) Balance(ctx context.Context, q Querier, ownerID int64) (decimal.Decimal, error) {
	return s.balance(ctx, q, ownerID, false)
}

func (s *postgresStore) BalanceForUpdate(ctx context.Context, q Querier, ownerID int64) (decimal.Decimal, error) {
	return s.balance(ctx, q, ownerID, true)
}

func (s *postgresStore) balance(ctx context.Context, q Querier, ownerID int64, forUpdate bool) (decimal.Decimal, error) {
	query := `SELECT balance FROM accounts WHERE owner_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var balance decimal.Decimal
	err := q.QueryRow(ctx, query, ownerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("account: failed to select balance for owner %d: %w", ownerID, err)
	}

	return balance, nil
}

func (s *postgresStore) SetBalance(ctx context.Context, q Querier, ownerID int64, balance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = now()
		WHERE owner_id = $2
		RETURNING owner_id
	`

	var id int64
	err := q.QueryRow(ctx, query, balance, ownerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("account: failed to update balance for owner %d: %w", ownerID, err)
	}

	return nil
}
