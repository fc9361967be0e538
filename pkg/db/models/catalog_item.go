package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

// CatalogItem is a supplier listing priced per unit with optional volume tiers.
type CatalogItem struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SupplierID           uuid.UUID         `gorm:"column:supplier_id;type:uuid;not null"`
	SKU                  string            `gorm:"column:sku;not null"`
	Name                 string            `gorm:"column:name;not null"`
	Unit                 enums.CatalogUnit `gorm:"column:unit;not null"`
	BasePrice            decimal.Decimal   `gorm:"column:base_price;type:numeric(12,2);not null"`
	MinimumOrderQuantity int               `gorm:"column:moq;not null;default:1"`
	IsActive             bool              `gorm:"column:is_active;not null;default:true"`
	Tiers                []PriceTier       `gorm:"foreignKey:CatalogItemID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by migrations.
func (CatalogItem) TableName() string { return "catalog_items" }

// BeforeCreate assigns an identifier when the database cannot.
func (c *CatalogItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
