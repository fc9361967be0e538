package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

// Decoder turns an envelope's data into its typed event.
type Decoder func(data json.RawMessage) (any, error)

type schema struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry knows which (event type, envelope version) pairs the relay
// may publish. It is built once and read concurrently afterwards.
type DecoderRegistry struct {
	decoders map[schema]Decoder
}

// DefaultRegistry covers every group order event at the version Emit writes.
func DefaultRegistry() *DecoderRegistry {
	return NewDecoderRegistry(map[enums.OutboxEventType]Decoder{
		enums.EventGroupOrderCreated:              decodeInto[OrderCreatedEvent],
		enums.EventGroupOrderParticipationChanged: decodeInto[ParticipationChangedEvent],
		enums.EventGroupOrderStatusChanged:        decodeInto[StatusChangedEvent],
	})
}

// NewDecoderRegistry registers decoders at the current envelope version.
func NewDecoderRegistry(current map[enums.OutboxEventType]Decoder) *DecoderRegistry {
	r := &DecoderRegistry{decoders: make(map[schema]Decoder, len(current))}
	for eventType, decoder := range current {
		r.decoders[schema{eventType: eventType, version: currentVersion}] = decoder
	}
	return r
}

// Decode fails for unknown schemas and for data the decoder rejects.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	decoder, ok := r.decoders[schema{eventType: eventType, version: version}]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s v%d", eventType, version)
	}
	return decoder(data)
}

func decodeInto[T any](data json.RawMessage) (any, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %T: %w", out, err)
	}
	return &out, nil
}
