package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderParticipation is one vendor's frozen cart inside a group order.
// Edits replace the row and its lines; nothing is patched in place.
type OrderParticipation struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupOrderID    uuid.UUID           `gorm:"column:group_order_id;type:uuid;not null"`
	VendorID        uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(14,2);not null"`
	BaseTotalAmount decimal.Decimal     `gorm:"column:base_total_amount;type:numeric(14,2);not null"`
	Lines           []ParticipationLine `gorm:"foreignKey:ParticipationID;constraint:OnDelete:CASCADE"`
	SubmittedAt     time.Time           `gorm:"column:submitted_at;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (OrderParticipation) TableName() string { return "order_participations" }

func (p *OrderParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ParticipationLine is a priced cart line frozen at submission time.
type ParticipationLine struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ParticipationID      uuid.UUID        `gorm:"column:participation_id;type:uuid;not null"`
	CatalogItemID        uuid.UUID        `gorm:"column:catalog_item_id;type:uuid;not null"`
	Position             int              `gorm:"column:position;not null"`
	Quantity             int              `gorm:"column:quantity;not null"`
	BasePrice            decimal.Decimal  `gorm:"column:base_price;type:numeric(12,2);not null"`
	UnitPriceApplied     decimal.Decimal  `gorm:"column:unit_price_applied;type:numeric(12,2);not null"`
	AppliedTierMinQty    *int             `gorm:"column:applied_tier_min_qty"`
	AppliedTierUnitPrice *decimal.Decimal `gorm:"column:applied_tier_unit_price;type:numeric(12,2)"`
	LineTotal            decimal.Decimal  `gorm:"column:line_total;type:numeric(14,2);not null"`
	BaseTotal            decimal.Decimal  `gorm:"column:base_total;type:numeric(14,2);not null"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (ParticipationLine) TableName() string { return "participation_lines" }

func (l *ParticipationLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
