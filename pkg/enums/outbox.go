package enums

import "fmt"

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateGroupOrder OutboxAggregateType = "group_order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateGroupOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the domain event stored in outbox_events.
type OutboxEventType string

const (
	EventGroupOrderCreated              OutboxEventType = "group_order_created"
	EventGroupOrderParticipationChanged OutboxEventType = "group_order_participation_changed"
	EventGroupOrderStatusChanged        OutboxEventType = "group_order_status_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventGroupOrderCreated,
	EventGroupOrderParticipationChanged,
	EventGroupOrderStatusChanged,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// ParticipationChange describes what happened to a vendor's participation.
type ParticipationChange string

const (
	ParticipationJoined   ParticipationChange = "joined"
	ParticipationReplaced ParticipationChange = "replaced"
	ParticipationRemoved  ParticipationChange = "removed"
)
