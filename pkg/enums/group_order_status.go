package enums

import "fmt"

// GroupOrderStatus tracks the supplier-facing lifecycle of a group order.
type GroupOrderStatus string

const (
	GroupOrderStatusPending   GroupOrderStatus = "pending"
	GroupOrderStatusConfirmed GroupOrderStatus = "confirmed"
	GroupOrderStatusPreparing GroupOrderStatus = "preparing"
	GroupOrderStatusReady     GroupOrderStatus = "ready"
	GroupOrderStatusDelivered GroupOrderStatus = "delivered"
	GroupOrderStatusCancelled GroupOrderStatus = "cancelled"
)

var validGroupOrderStatuses = []GroupOrderStatus{
	GroupOrderStatusPending,
	GroupOrderStatusConfirmed,
	GroupOrderStatusPreparing,
	GroupOrderStatusReady,
	GroupOrderStatusDelivered,
	GroupOrderStatusCancelled,
}

// AllGroupOrderStatuses returns every status in lifecycle order.
func AllGroupOrderStatuses() []GroupOrderStatus {
	return append([]GroupOrderStatus(nil), validGroupOrderStatuses...)
}

// groupOrderTransitions lists the forward moves allowed from each status.
// delivered and cancelled are terminal.
var groupOrderTransitions = map[GroupOrderStatus][]GroupOrderStatus{
	GroupOrderStatusPending:   {GroupOrderStatusConfirmed, GroupOrderStatusCancelled},
	GroupOrderStatusConfirmed: {GroupOrderStatusPreparing, GroupOrderStatusCancelled},
	GroupOrderStatusPreparing: {GroupOrderStatusReady, GroupOrderStatusCancelled},
	GroupOrderStatusReady:     {GroupOrderStatusDelivered, GroupOrderStatusCancelled},
}

// String implements fmt.Stringer.
func (s GroupOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known GroupOrderStatus.
func (s GroupOrderStatus) IsValid() bool {
	for _, candidate := range validGroupOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s GroupOrderStatus) IsTerminal() bool {
	return s.IsValid() && len(groupOrderTransitions[s]) == 0
}

// AcceptsParticipants reports whether vendors may still join, edit or leave.
func (s GroupOrderStatus) AcceptsParticipants() bool {
	return s == GroupOrderStatusPending
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s GroupOrderStatus) CanTransitionTo(next GroupOrderStatus) bool {
	for _, candidate := range groupOrderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseGroupOrderStatus converts raw input into a GroupOrderStatus.
func ParseGroupOrderStatus(value string) (GroupOrderStatus, error) {
	for _, candidate := range validGroupOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group order status %q", value)
}
