package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineQuote is one priced cart line.
//
// SavingsAmount is BaseTotal - LineTotal and is negative when the applied tier
// is priced above the base price. Degraded marks a line that resolved to a
// zero unit price because the item has a zero base price and no applicable tier.
type LineQuote struct {
	ItemID            uuid.UUID
	Quantity          int
	BasePrice         decimal.Decimal
	UnitPrice         decimal.Decimal
	LineTotal         decimal.Decimal
	BaseTotal         decimal.Decimal
	SavingsAmount     decimal.Decimal
	SavingsPercent    decimal.Decimal
	AppliedTier       *PriceTier
	MeetsMinimumOrder bool
	Degraded          bool
}

// PriceLine resolves the unit price for quantity and derives the line totals.
func PriceLine(item CatalogItem, quantity int) (LineQuote, error) {
	resolution, err := ResolvePrice(item.Pricing, quantity)
	if err != nil {
		return LineQuote{}, err
	}

	qty := decimal.NewFromInt(int64(quantity))
	lineTotal := resolution.UnitPrice.Mul(qty)
	baseTotal := item.BasePrice().Mul(qty)
	savings := baseTotal.Sub(lineTotal)

	return LineQuote{
		ItemID:            item.ID,
		Quantity:          quantity,
		BasePrice:         item.BasePrice(),
		UnitPrice:         resolution.UnitPrice,
		LineTotal:         lineTotal,
		BaseTotal:         baseTotal,
		SavingsAmount:     savings,
		SavingsPercent:    SavingsPercent(savings, baseTotal),
		AppliedTier:       resolution.AppliedTier,
		MeetsMinimumOrder: item.AdmitsQuantity(quantity),
		Degraded:          resolution.AppliedTier == nil && item.BasePrice().IsZero(),
	}, nil
}

// SavingsPercent is amount / baseTotal * 100 rounded to one decimal place.
// A zero base total reports 0 rather than dividing by zero.
func SavingsPercent(amount, baseTotal decimal.Decimal) decimal.Decimal {
	if baseTotal.IsZero() {
		return decimal.Zero
	}
	return amount.Div(baseTotal).Mul(hundred).Round(1)
}
