package pricing

import (
	"github.com/google/uuid"

	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
)

// CartLine is a requested quantity of one catalog item.
type CartLine struct {
	ItemID   uuid.UUID
	Quantity int
}

// ValidateCart rejects empty carts, non-positive quantities and repeated items.
// Errors name the offending line index.
func ValidateCart(lines []CartLine) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one line")
	}
	seen := make(map[uuid.UUID]int, len(lines))
	for i, line := range lines {
		if line.ItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item id is required").
				WithDetails(map[string]any{"line": i})
		}
		if line.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"line": i, "quantity": line.Quantity})
		}
		if first, dup := seen[line.ItemID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "item appears more than once in cart").
				WithDetails(map[string]any{"line": i, "first_line": first, "item_id": line.ItemID.String()})
		}
		seen[line.ItemID] = i
	}
	return nil
}

// ItemIDs returns the item ids of lines in order.
func ItemIDs(lines []CartLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	return ids
}

// PriceCart prices every line against items and summarizes the result. Every
// line's item must be present in items.
func PriceCart(items map[uuid.UUID]CatalogItem, lines []CartLine) ([]LineQuote, Summary, error) {
	if err := ValidateCart(lines); err != nil {
		return nil, Summary{}, err
	}
	quotes := make([]LineQuote, 0, len(lines))
	for _, line := range lines {
		item, ok := items[line.ItemID]
		if !ok {
			return nil, Summary{}, pkgerrors.New(pkgerrors.CodeNotFound, "catalog item not found").
				WithDetails(map[string]any{"item_id": line.ItemID.String()})
		}
		quote, err := PriceLine(item, line.Quantity)
		if err != nil {
			return nil, Summary{}, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, SummarizeLines(quotes), nil
}
