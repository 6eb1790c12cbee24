package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/basket-service/internal/account"
	"github.com/vasiliy-maslov/basket-service/internal/basket"
	"github.com/vasiliy-maslov/basket-service/internal/catalog"
)

// allowedTransitions is the basket state machine. Only open baskets move;
// terminal statuses are rejected by Status.Terminal before the lookup.
var allowedTransitions = map[basket.Status]map[basket.Status]bool{
	basket.StatusOpen: {
		basket.StatusOrders:    true,
		basket.StatusCleared:   true,
		basket.StatusCancelled: true,
	},
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransition = errors.New("invalid basket status transition")
)

// CheckoutResult reports a completed checkout. A nil result with a nil error
// means there was nothing to purchase.
type CheckoutResult struct {
	BasketID   int64           `json:"basket_id"`
	Total      decimal.Decimal `json:"total"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// ClearResult reports a completed clear. Nil result, nil error: no open basket.
type ClearResult struct {
	BasketID int64 `json:"basket_id"`
}

type DB interface {
	basket.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service transitions an open basket into one of its terminal states.
type Service interface {
	// Checkout re-prices the open basket, checks the owner's balance and, in
	// one transaction, marks the basket as orders and debits the balance.
	Checkout(ctx context.Context, ownerID int64) (*CheckoutResult, error)
	// Clear marks the open basket as cleared. No balance check.
	Clear(ctx context.Context, ownerID int64) (*ClearResult, error)
	// Balance reads the owner's current balance outside any checkout. No lock.
	Balance(ctx context.Context, ownerID int64) (decimal.Decimal, error)
}

type service struct {
	db       DB
	baskets  basket.Repository
	catalog  catalog.Resolver
	accounts account.Store
}

func NewService(db DB, baskets basket.Repository, resolver catalog.Resolver, accounts account.Store) Service {
	return &service{db: db, baskets: baskets, catalog: resolver, accounts: accounts}
}

func (s *service) Checkout(ctx context.Context, ownerID int64) (result *CheckoutResult, err error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: owner id must be positive, got %d", basket.ErrInvalidInput, ownerID)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Int64("owner_id", ownerID).Msg("service: failed to rollback checkout transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			result = nil
			err = fmt.Errorf("service: failed to commit transaction: %w", commitErr)
		}
	}()

	b, err := s.baskets.FindOpenForUpdate(ctx, tx, ownerID)
	if err != nil {
		if errors.Is(err, basket.ErrNoOpenBasket) {
			log.Info().Int64("owner_id", ownerID).Msg("service: checkout with no open basket, nothing to purchase")
			return nil, nil
		}
		return nil, fmt.Errorf("service: failed to find open basket: %w", err)
	}

	if err = validateTransition(b.Status, basket.StatusOrders); err != nil {
		return nil, err
	}

	// Prices are re-fetched at checkout time, never trusted from when the
	// item was added. SKUs the catalog dropped contribute nothing.
	total, err := s.basketTotal(ctx, b.Items)
	if err != nil {
		return nil, err
	}

	balance, err := s.accounts.BalanceForUpdate(ctx, tx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read balance: %w", err)
	}

	if balance.LessThan(total) {
		log.Info().Int64("owner_id", ownerID).Int64("basket_id", b.ID).
			Str("total", total.String()).Str("balance", balance.String()).
			Msg("service: checkout rejected, insufficient funds")
		err = ErrInsufficientFunds
		return nil, err
	}

	newBalance := balance.Sub(total)

	if err = s.baskets.UpdateStatus(ctx, tx, b.ID, basket.StatusOrders); err != nil {
		return nil, fmt.Errorf("service: failed to mark basket as orders: %w", err)
	}
	if err = s.accounts.SetBalance(ctx, tx, ownerID, newBalance); err != nil {
		return nil, fmt.Errorf("service: failed to debit balance: %w", err)
	}

	log.Info().Int64("owner_id", ownerID).Int64("basket_id", b.ID).
		Str("total", total.String()).Str("new_balance", newBalance.String()).
		Msg("service: checkout completed")

	return &CheckoutResult{BasketID: b.ID, Total: total, NewBalance: newBalance}, nil
}

func (s *service) Clear(ctx context.Context, ownerID int64) (result *ClearResult, err error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: owner id must be positive, got %d", basket.ErrInvalidInput, ownerID)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Int64("owner_id", ownerID).Msg("service: failed to rollback clear transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			result = nil
			err = fmt.Errorf("service: failed to commit transaction: %w", commitErr)
		}
	}()

	b, err := s.baskets.FindOpenForUpdate(ctx, tx, ownerID)
	if err != nil {
		if errors.Is(err, basket.ErrNoOpenBasket) {
			return nil, nil
		}
		return nil, fmt.Errorf("service: failed to find open basket: %w", err)
	}

	if err = validateTransition(b.Status, basket.StatusCleared); err != nil {
		return nil, err
	}

	if err = s.baskets.UpdateStatus(ctx, tx, b.ID, basket.StatusCleared); err != nil {
		return nil, fmt.Errorf("service: failed to mark basket as cleared: %w", err)
	}

	log.Info().Int64("owner_id", ownerID).Int64("basket_id", b.ID).Msg("service: basket cleared")

	return &ClearResult{BasketID: b.ID}, nil
}

func (s *service) Balance(ctx context.Context, ownerID int64) (decimal.Decimal, error) {
	if ownerID <= 0 {
		return decimal.Zero, fmt.Errorf("%w: owner id must be positive, got %d", basket.ErrInvalidInput, ownerID)
	}

	balance, err := s.accounts.Balance(ctx, s.db, ownerID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("service: failed to read balance: %w", err)
	}

	return balance, nil
}

func (s *service) basketTotal(ctx context.Context, items basket.Items) (decimal.Decimal, error) {
	skus := make([]string, 0, len(items))
	for sku := range items {
		skus = append(skus, sku)
	}

	products, err := s.catalog.Resolve(ctx, skus)
	if err != nil {
		return decimal.Zero, fmt.Errorf("service: failed to resolve prices: %w", err)
	}

	total := decimal.Zero
	for sku, qty := range items {
		p, ok := products[sku]
		if !ok {
			continue
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
	}

	return total, nil
}

func validateTransition(from, to basket.Status) error {
	if from.Terminal() || !allowedTransitions[from][to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
