package pricing

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
)

// Resolution is the effective unit price for a quantity and the tier that
// produced it. AppliedTier is nil when the base price applies.
type Resolution struct {
	UnitPrice   decimal.Decimal
	AppliedTier *PriceTier
}

// ResolvePrice picks the deepest tier the quantity qualifies for: among tiers
// with MinimumQuantity <= quantity the largest MinimumQuantity wins, and ties on
// MinimumQuantity go to the lowest UnitPrice. Tier order in the table never
// affects the result. With no qualifying tier the base price applies.
func ResolvePrice(table TierTable, quantity int) (Resolution, error) {
	if quantity < 1 {
		return Resolution{}, invalidQuantity(quantity)
	}

	var selected *PriceTier
	for i := range table.Tiers {
		tier := table.Tiers[i]
		if tier.MinimumQuantity > quantity {
			continue
		}
		if selected == nil || deeper(tier, *selected) {
			picked := tier
			selected = &picked
		}
	}

	if selected == nil {
		return Resolution{UnitPrice: table.BasePrice}, nil
	}
	return Resolution{UnitPrice: selected.UnitPrice, AppliedTier: selected}, nil
}

func deeper(candidate, current PriceTier) bool {
	if candidate.MinimumQuantity != current.MinimumQuantity {
		return candidate.MinimumQuantity > current.MinimumQuantity
	}
	return candidate.UnitPrice.LessThan(current.UnitPrice)
}

func invalidQuantity(quantity int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
		WithDetails(map[string]any{"quantity": quantity})
}
