package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

// OutboxEvent is a group-order domain event written in the same transaction
// as the state change it describes. The relay moves it to Redis and stamps
// PublishedAt, or DeadLetteredAt once it can never be delivered.
type OutboxEvent struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType      enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType  enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID    uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload        json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt    *time.Time                `gorm:"column:published_at"`
	AttemptCount   int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError      *string                   `gorm:"column:last_error"`
	DeadLetteredAt *time.Time                `gorm:"column:dead_lettered_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Pending reports whether the relay should still try to deliver the event.
func (e OutboxEvent) Pending(maxAttempts int) bool {
	return e.PublishedAt == nil && e.DeadLetteredAt == nil && e.AttemptCount < maxAttempts
}
