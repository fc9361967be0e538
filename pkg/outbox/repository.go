package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
)

const unknownCause = "unknown error"

// Repository stores and advances outbox rows. Methods accept an optional
// transaction; nil falls back to the repository's own handle.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Insert requires the caller's transaction so the event commits with the
// order change it describes.
func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("outbox insert requires a transaction")
	}
	return tx.Create(&event).Error
}

// FetchUnpublished returns the oldest deliverable events, oldest first.
func (r *Repository) FetchUnpublished(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.conn(tx).
		Where("published_at IS NULL AND dead_lettered_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": time.Now().UTC()})
}

// MarkFailed records a retryable delivery failure.
func (r *Repository) MarkFailed(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    causeText(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminal dead-letters the event: it records cause, pins attempt_count
// to attempts and is never fetched again.
func (r *Repository) MarkTerminal(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error {
	return r.update(tx, id, map[string]any{
		"last_error":       causeText(cause),
		"attempt_count":    attempts,
		"dead_lettered_at": time.Now().UTC(),
	})
}

// DeadLettered lists events the relay gave up on, newest first.
func (r *Repository) DeadLettered(tx *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.conn(tx).
		Where("dead_lettered_at IS NOT NULL").
		Order("dead_lettered_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	return r.conn(tx).Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func causeText(cause error) string {
	if cause == nil {
		return unknownCause
	}
	return cause.Error()
}
