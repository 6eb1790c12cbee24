package basket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/basket-service/internal/catalog"
)

var ErrInvalidInput = errors.New("invalid input")

// DB is the subset of *pgxpool.Pool the service needs: plain queries for
// reads and transaction begin for mutations.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the basket store: it owns the per-owner open basket aggregate.
type Service interface {
	// AddItem adds qty units of sku to the owner's open basket, creating the
	// basket when none exists.
	AddItem(ctx context.Context, ownerID int64, sku string, qty int) error
	// DecreaseItem removes qty units of sku. Missing basket or sku is a
	// silent no-op. A basket emptied by the decrement becomes cancelled.
	DecreaseItem(ctx context.Context, ownerID int64, sku string, qty int) error
	// OpenItems projects the current open basket into display line items.
	// Returns an empty slice when there is no open basket.
	OpenItems(ctx context.Context, ownerID int64) ([]LineItem, error)
}

type service struct {
	db      DB
	repo    Repository
	catalog catalog.Resolver
}

func NewService(db DB, repo Repository, resolver catalog.Resolver) Service {
	return &service{db: db, repo: repo, catalog: resolver}
}

func (s *service) AddItem(ctx context.Context, ownerID int64, sku string, qty int) (err error) {
	sku = strings.TrimSpace(sku)

	if ownerID <= 0 {
		return fmt.Errorf("%w: owner id must be positive, got %d", ErrInvalidInput, ownerID)
	}
	if sku == "" {
		return fmt.Errorf("%w: sku must not be empty", ErrInvalidInput)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidInput, qty)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("service: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Int64("owner_id", ownerID).Msg("service: failed to rollback after panic in AddItem")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Int64("owner_id", ownerID).Msg("service: failed to rollback AddItem transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("service: failed to commit transaction: %w", commitErr)
		}
	}()

	b, err := s.repo.FindOpenForUpdate(ctx, tx, ownerID)
	if err != nil {
		if !errors.Is(err, ErrNoOpenBasket) {
			return fmt.Errorf("service: failed to find open basket: %w", err)
		}

		_, err = s.repo.CreateOpen(ctx, tx, ownerID, Items{sku: qty})
		if err == nil {
			log.Info().Int64("owner_id", ownerID).Str("sku", sku).Int("qty", qty).Msg("service: created open basket")
			return nil
		}
		if !errors.Is(err, ErrOpenBasketExists) {
			return fmt.Errorf("service: failed to create open basket: %w", err)
		}

		// Lost the creation race to a concurrent request; its row is
		// committed, lock and update it instead.
		b, err = s.repo.FindOpenForUpdate(ctx, tx, ownerID)
		if err != nil {
			return fmt.Errorf("service: failed to find open basket after insert conflict: %w", err)
		}
	}

	b.Items[sku] += qty

	if err = s.repo.UpdateItems(ctx, tx, b.ID, b.Items); err != nil {
		return fmt.Errorf("service: failed to update basket items: %w", err)
	}

	log.Info().Int64("owner_id", ownerID).Int64("basket_id", b.ID).Str("sku", sku).Int("qty", qty).Msg("service: item added to basket")
	return nil
}

func (s *service) DecreaseItem(ctx context.Context, ownerID int64, sku string, qty int) (err error) {
	if ownerID <= 0 {
		return fmt.Errorf("%w: owner id must be positive, got %d", ErrInvalidInput, ownerID)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidInput, qty)
	}

	// A blank sku cannot be present in any basket, nothing to do.
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("service: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Int64("owner_id", ownerID).Msg("service: failed to rollback DecreaseItem transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("service: failed to commit transaction: %w", commitErr)
		}
	}()

	b, err := s.repo.FindOpenForUpdate(ctx, tx, ownerID)
	if err != nil {
		if errors.Is(err, ErrNoOpenBasket) {
			return nil
		}
		return fmt.Errorf("service: failed to find open basket: %w", err)
	}

	current, ok := b.Items[sku]
	if !ok {
		return nil
	}

	if newQty := current - qty; newQty > 0 {
		b.Items[sku] = newQty
	} else {
		delete(b.Items, sku)
	}

	if len(b.Items) == 0 {
		// An open basket never survives with empty items.
		if err = s.repo.UpdateItemsAndStatus(ctx, tx, b.ID, b.Items, StatusCancelled); err != nil {
			return fmt.Errorf("service: failed to cancel emptied basket: %w", err)
		}
		log.Info().Int64("owner_id", ownerID).Int64("basket_id", b.ID).Msg("service: basket emptied, cancelled")
		return nil
	}

	if err = s.repo.UpdateItems(ctx, tx, b.ID, b.Items); err != nil {
		return fmt.Errorf("service: failed to update basket items: %w", err)
	}

	log.Info().Int64("owner_id", ownerID).Int64("basket_id", b.ID).Str("sku", sku).Int("qty", qty).Msg("service: item decreased in basket")
	return nil
}

func (s *service) OpenItems(ctx context.Context, ownerID int64) ([]LineItem, error) {
	if ownerID <= 0 {
		return []LineItem{}, nil
	}

	b, err := s.repo.FindOpen(ctx, s.db, ownerID)
	if err != nil {
		if errors.Is(err, ErrNoOpenBasket) {
			return []LineItem{}, nil
		}
		return nil, fmt.Errorf("service: failed to find open basket: %w", err)
	}

	return ResolveLineItems(ctx, s.catalog, b.Items)
}

// ResolveLineItems joins an items map against the catalog. SKUs the catalog
// no longer knows are dropped from the result.
func ResolveLineItems(ctx context.Context, resolver catalog.Resolver, items Items) ([]LineItem, error) {
	lineItems := make([]LineItem, 0, len(items))
	if len(items) == 0 {
		return lineItems, nil
	}

	skus := make([]string, 0, len(items))
	for sku := range items {
		skus = append(skus, sku)
	}

	products, err := resolver.Resolve(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("service: failed to resolve products: %w", err)
	}

	for sku, qty := range items {
		p, ok := products[sku]
		if !ok {
			continue
		}
		lineItems = append(lineItems, LineItem{
			SKU:      sku,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: qty,
		})
	}

	sort.Slice(lineItems, func(i, j int) bool { return lineItems[i].SKU < lineItems[j].SKU })

	return lineItems, nil
}
