package grouporders

import (
	"time"

	"github.com/google/uuid"

	"github.com/kiranahub/kiranahub-backend/internal/pricing"
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

// CreateOrderInput opens a pending group order against a supplier.
type CreateOrderInput struct {
	SupplierID uuid.UUID
	VendorID   uuid.UUID
	ClusterID  *uuid.UUID
	Notes      *string
}

// SubmitParticipationInput joins an order or replaces the vendor's cart.
type SubmitParticipationInput struct {
	OrderID  uuid.UUID
	VendorID uuid.UUID
	Lines    []pricing.CartLine
}

// RemoveParticipationInput withdraws a vendor from an order.
type RemoveParticipationInput struct {
	OrderID  uuid.UUID
	VendorID uuid.UUID
}

// TransitionInput is a supplier-driven status change.
type TransitionInput struct {
	OrderID    uuid.UUID
	SupplierID uuid.UUID
	Target     enums.GroupOrderStatus
}

// ParticipationView is one vendor's frozen cart with its savings summary.
type ParticipationView struct {
	ID          uuid.UUID
	VendorID    uuid.UUID
	SubmittedAt time.Time
	Lines       []pricing.LineQuote
	Summary     pricing.Summary
}

// OrderView is an order with every participation and the order-level summary.
// Summary is recomputed from the participations on every read.
type OrderView struct {
	ID                uuid.UUID
	SupplierID        uuid.UUID
	ClusterID         *uuid.UUID
	CreatedByVendorID uuid.UUID
	Status            enums.GroupOrderStatus
	Version           int
	Notes             *string
	StatusChangedAt   *time.Time
	CreatedAt         time.Time
	Participations    []ParticipationView
	Summary           pricing.Summary
}

// SubmitResult reports whether the vendor joined or replaced a previous cart.
type SubmitResult struct {
	Change enums.ParticipationChange
	Order  *OrderView
}

// Participation returns the view for vendorID, if present.
func (o *OrderView) Participation(vendorID uuid.UUID) (ParticipationView, bool) {
	if o == nil {
		return ParticipationView{}, false
	}
	for _, p := range o.Participations {
		if p.VendorID == vendorID {
			return p, true
		}
	}
	return ParticipationView{}, false
}

// ListOrdersInput filters and pages an order listing.
type ListOrdersInput struct {
	SupplierID *uuid.UUID
	ClusterID  *uuid.UUID
	Status     *enums.GroupOrderStatus
	Limit      int
	Cursor     string
}

// OrderPage is one page of orders, newest first. NextCursor is empty on the
// last page.
type OrderPage struct {
	Orders     []*OrderView
	NextCursor string
}
