package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

// GroupOrder is the supplier-facing order pooling many vendor participations.
// TotalAmount and BaseTotalAmount are derived from the participations on every
// write; Version guards those writes.
type GroupOrder struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SupplierID        uuid.UUID              `gorm:"column:supplier_id;type:uuid;not null"`
	ClusterID         *uuid.UUID             `gorm:"column:cluster_id;type:uuid"`
	CreatedByVendorID uuid.UUID              `gorm:"column:created_by_vendor_id;type:uuid;not null"`
	Status            enums.GroupOrderStatus `gorm:"column:status;not null;default:pending"`
	TotalAmount       decimal.Decimal        `gorm:"column:total_amount;type:numeric(14,2);not null;default:0"`
	BaseTotalAmount   decimal.Decimal        `gorm:"column:base_total_amount;type:numeric(14,2);not null;default:0"`
	Version           int                    `gorm:"column:version;not null;default:1"`
	Notes             *string                `gorm:"column:notes"`
	Participations    []OrderParticipation   `gorm:"foreignKey:GroupOrderID;constraint:OnDelete:CASCADE"`
	StatusChangedAt   *time.Time             `gorm:"column:status_changed_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (GroupOrder) TableName() string { return "group_orders" }

func (g *GroupOrder) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
