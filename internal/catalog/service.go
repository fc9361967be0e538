package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
)

// Service resolves catalog references into validated pricing items.
type Service interface {
	GetItem(ctx context.Context, id uuid.UUID) (pricing.CatalogItem, error)
	GetItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.CatalogItem, error)
}

type service struct {
	repo ItemReader
}

// NewService builds a catalog service backed by the provided reader.
func NewService(repo ItemReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// GetItem returns NotFound for unknown or inactive items.
func (s *service) GetItem(ctx context.Context, id uuid.UUID) (pricing.CatalogItem, error) {
	if id == uuid.Nil {
		return pricing.CatalogItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	row, err := s.repo.FindActiveItem(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.CatalogItem{}, notFound(id)
		}
		return pricing.CatalogItem{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog item")
	}
	return ToPricingItem(*row)
}

// GetItems resolves every id or fails with NotFound naming the first missing one.
func (s *service) GetItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.CatalogItem, error) {
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
		}
	}
	rows, err := s.repo.FindActiveItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog items")
	}

	items := make(map[uuid.UUID]pricing.CatalogItem, len(rows))
	for _, row := range rows {
		item, err := ToPricingItem(row)
		if err != nil {
			return nil, err
		}
		items[item.ID] = item
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, notFound(id)
		}
	}
	return items, nil
}

// ToPricingItem validates a persisted row into a pricing item. Malformed tier
// data surfaces as a validation error naming the item.
func ToPricingItem(row models.CatalogItem) (pricing.CatalogItem, error) {
	tiers := make([]pricing.PriceTier, 0, len(row.Tiers))
	for _, tier := range row.Tiers {
		tiers = append(tiers, pricing.PriceTier{
			MinimumQuantity: tier.MinimumQuantity,
			UnitPrice:       tier.UnitPrice,
		})
	}
	return pricing.NewCatalogItem(
		row.ID,
		row.SupplierID,
		row.Name,
		row.Unit,
		row.MinimumOrderQuantity,
		pricing.TierTable{BasePrice: row.BasePrice, Tiers: tiers},
	)
}

func notFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "catalog item not found").
		WithDetails(map[string]any{"item_id": id.String()})
}
