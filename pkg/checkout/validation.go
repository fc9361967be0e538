// Package checkout holds the admission rules a vendor cart must pass before
// it is pooled into a group order.
package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/kiranahub/kiranahub-backend/pkg/errors"
)

// AdmissionLine is one priced cart line with the catalog facts admission
// depends on.
type AdmissionLine struct {
	ItemID               uuid.UUID
	SupplierID           uuid.UUID
	MinimumOrderQuantity int
	Quantity             int
}

// MOQViolation is reported for every line below its item's minimum.
type MOQViolation struct {
	ItemID       uuid.UUID `json:"itemId"`
	RequiredQty  int       `json:"requiredQuantity"`
	RequestedQty int       `json:"requestedQuantity"`
}

// ValidateMOQ rejects the cart if any line is below its minimum order
// quantity. All violations are reported together.
func ValidateMOQ(lines []AdmissionLine) error {
	var violations []MOQViolation
	for _, line := range lines {
		if line.Quantity >= line.MinimumOrderQuantity {
			continue
		}
		violations = append(violations, MOQViolation{
			ItemID:       line.ItemID,
			RequiredQty:  line.MinimumOrderQuantity,
			RequestedQty: line.Quantity,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("minimum order quantity not met for %d item(s)", len(violations))).
		WithDetails(map[string]any{"violations": violations})
}

// ValidateSupplier rejects lines for items another supplier sells.
func ValidateSupplier(lines []AdmissionLine, supplierID uuid.UUID) error {
	var foreign []string
	for _, line := range lines {
		if line.SupplierID != supplierID {
			foreign = append(foreign, line.ItemID.String())
		}
	}
	if len(foreign) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "item is not sold by the order's supplier").
		WithDetails(map[string]any{"item_ids": foreign})
}
