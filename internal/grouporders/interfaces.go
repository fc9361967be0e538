package grouporders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
	"github.com/kiranahub/kiranahub-backend/pkg/outbox"
	"github.com/kiranahub/kiranahub-backend/pkg/pagination"
)

// Repository defines persistence operations for group orders and participations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.GroupOrder) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.GroupOrder, error)
	// ListOrders returns up to limit orders newest first, participations and
	// lines preloaded.
	ListOrders(ctx context.Context, filter ListFilter, limit int) ([]models.GroupOrder, error)
	ListParticipations(ctx context.Context, orderID uuid.UUID) ([]models.OrderParticipation, error)
	FindParticipation(ctx context.Context, orderID, vendorID uuid.UUID) (*models.OrderParticipation, error)
	CreateParticipation(ctx context.Context, participation *models.OrderParticipation) error
	DeleteParticipation(ctx context.Context, participationID uuid.UUID) error
	// UpdateTotals writes the recomputed totals and bumps the version only if
	// the stored version still equals expectedVersion.
	UpdateTotals(ctx context.Context, orderID uuid.UUID, expectedVersion int, total, baseTotal decimal.Decimal) (bool, error)
	// UpdateStatus moves the order to status under the same version guard.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, expectedVersion int, status enums.GroupOrderStatus, changedAt time.Time) (bool, error)
}

// ListFilter narrows an order listing. Nil fields match everything.
type ListFilter struct {
	SupplierID *uuid.UUID
	ClusterID  *uuid.UUID
	Status     *enums.GroupOrderStatus
	After      *pagination.Cursor
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Locker serialises writers of one order across processes.
type Locker interface {
	Key(resource, id string) string
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}
