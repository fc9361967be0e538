package outbox

import (
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

// ParticipationChangedEvent is the data of group_order_participation_changed.
// Amounts are rendered with two decimals.
type ParticipationChangedEvent struct {
	GroupOrderID    string                    `json:"groupOrderId"`
	VendorID        string                    `json:"vendorId"`
	Change          enums.ParticipationChange `json:"change"`
	OrderVersion    int                       `json:"orderVersion"`
	OrderTotal      string                    `json:"orderTotal"`
	OrderBaseTotal  string                    `json:"orderBaseTotal"`
	VendorTotal     string                    `json:"vendorTotal,omitempty"`
	VendorBaseTotal string                    `json:"vendorBaseTotal,omitempty"`
}

// StatusChangedEvent is the data of group_order_status_changed.
type StatusChangedEvent struct {
	GroupOrderID string                 `json:"groupOrderId"`
	From         enums.GroupOrderStatus `json:"from"`
	To           enums.GroupOrderStatus `json:"to"`
	OrderVersion int                    `json:"orderVersion"`
}

// OrderCreatedEvent is the data of group_order_created.
type OrderCreatedEvent struct {
	GroupOrderID string  `json:"groupOrderId"`
	SupplierID   string  `json:"supplierId"`
	ClusterID    *string `json:"clusterId,omitempty"`
}
