// Package pricing resolves bulk-tier unit prices and derives line, participation
// and order totals from them. Everything here is pure and safe for concurrent use.
//
// Monetary values are decimal.Decimal with at most two fractional digits on
// input. Unit prices are never rounded; totals are exact products and sums of
// two-digit values, and only percentages are rounded (to one digit).
package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahub/kiranahub-backend/pkg/enums"
	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
)

// MoneyScale is the number of fractional digits carried by prices.
const MoneyScale = 2

// PriceTier grants UnitPrice once the requested quantity reaches MinimumQuantity.
type PriceTier struct {
	MinimumQuantity int
	UnitPrice       decimal.Decimal
}

// NewPriceTier validates a single tier.
func NewPriceTier(minimumQuantity int, unitPrice decimal.Decimal) (PriceTier, error) {
	if minimumQuantity < 1 {
		return PriceTier{}, malformedTier("tier minimum quantity must be at least 1", minimumQuantity, unitPrice)
	}
	if !unitPrice.IsPositive() {
		return PriceTier{}, malformedTier("tier unit price must be positive", minimumQuantity, unitPrice)
	}
	if !hasMoneyScale(unitPrice) {
		return PriceTier{}, malformedTier("tier unit price has more than 2 decimal places", minimumQuantity, unitPrice)
	}
	return PriceTier{MinimumQuantity: minimumQuantity, UnitPrice: unitPrice}, nil
}

// Label renders the tier for display, e.g. "25+ @ 80.00".
func (t PriceTier) Label() string {
	return fmt.Sprintf("%d+ @ %s", t.MinimumQuantity, t.UnitPrice.StringFixed(MoneyScale))
}

// TierTable is an item's base price plus its unordered tiers. Tiers may share a
// minimum quantity and need not get cheaper as quantity grows.
type TierTable struct {
	BasePrice decimal.Decimal
	Tiers     []PriceTier
}

// NewTierTable validates the base price and every tier. The tier slice is copied.
func NewTierTable(basePrice decimal.Decimal, tiers []PriceTier) (TierTable, error) {
	if basePrice.IsNegative() {
		return TierTable{}, pkgerrors.New(pkgerrors.CodeValidation, "base price must not be negative").
			WithDetails(map[string]any{"base_price": basePrice.String()})
	}
	if !hasMoneyScale(basePrice) {
		return TierTable{}, pkgerrors.New(pkgerrors.CodeValidation, "base price has more than 2 decimal places").
			WithDetails(map[string]any{"base_price": basePrice.String()})
	}
	copied := make([]PriceTier, 0, len(tiers))
	for _, tier := range tiers {
		valid, err := NewPriceTier(tier.MinimumQuantity, tier.UnitPrice)
		if err != nil {
			return TierTable{}, err
		}
		copied = append(copied, valid)
	}
	return TierTable{BasePrice: basePrice, Tiers: copied}, nil
}

// CatalogItem is the pricing view of a supplier listing.
type CatalogItem struct {
	ID                   uuid.UUID
	SupplierID           uuid.UUID
	Name                 string
	Unit                 enums.CatalogUnit
	MinimumOrderQuantity int
	Pricing              TierTable
}

// NewCatalogItem validates the item and its tier table.
func NewCatalogItem(id, supplierID uuid.UUID, name string, unit enums.CatalogUnit, minimumOrderQuantity int, table TierTable) (CatalogItem, error) {
	if id == uuid.Nil {
		return CatalogItem{}, pkgerrors.New(pkgerrors.CodeValidation, "catalog item id is required")
	}
	if minimumOrderQuantity < 1 {
		return CatalogItem{}, pkgerrors.New(pkgerrors.CodeValidation, "minimum order quantity must be at least 1").
			WithDetails(map[string]any{"item_id": id.String(), "moq": minimumOrderQuantity})
	}
	validated, err := NewTierTable(table.BasePrice, table.Tiers)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Details() == nil {
			typed.WithDetails(map[string]any{"item_id": id.String()})
		}
		return CatalogItem{}, err
	}
	return CatalogItem{
		ID:                   id,
		SupplierID:           supplierID,
		Name:                 name,
		Unit:                 unit,
		MinimumOrderQuantity: minimumOrderQuantity,
		Pricing:              validated,
	}, nil
}

// BasePrice is shorthand for the item's undiscounted unit price.
func (c CatalogItem) BasePrice() decimal.Decimal {
	return c.Pricing.BasePrice
}

// AdmitsQuantity is the ordering admission check: quantity must reach the
// item's minimum order quantity. It is deliberately separate from pricing;
// ResolvePrice prices any quantity >= 1.
func (c CatalogItem) AdmitsQuantity(quantity int) bool {
	return quantity >= c.MinimumOrderQuantity
}

func hasMoneyScale(value decimal.Decimal) bool {
	return value.Equal(value.Truncate(MoneyScale))
}

func malformedTier(message string, minimumQuantity int, unitPrice decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{
		"min_qty":    minimumQuantity,
		"unit_price": unitPrice.String(),
	})
}
