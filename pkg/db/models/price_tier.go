package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceTier captures one volume discount rule for a catalog item.
type PriceTier struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CatalogItemID   uuid.UUID       `gorm:"column:catalog_item_id;type:uuid;not null"`
	MinimumQuantity int             `gorm:"column:min_qty;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (PriceTier) TableName() string { return "price_tiers" }

func (p *PriceTier) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
