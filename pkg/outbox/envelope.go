package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	VendorID   *uuid.UUID `json:"vendorId,omitempty"`
	SupplierID *uuid.UUID `json:"supplierId,omitempty"`
}

// VendorActor is shorthand for an event caused by a vendor.
func VendorActor(id uuid.UUID) *ActorRef {
	return &ActorRef{VendorID: &id}
}

// SupplierActor is shorthand for an event caused by a supplier.
func SupplierActor(id uuid.UUID) *ActorRef {
	return &ActorRef{SupplierID: &id}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(payload []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return PayloadEnvelope{}, err
	}
	return envelope, nil
}
