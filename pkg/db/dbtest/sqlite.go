// Package dbtest opens isolated in-memory sqlite databases carrying the
// service schema, for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/db"
	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

// Open returns a private in-memory database with the schema applied. A single
// connection is used so transactions from concurrent goroutines serialise.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.ApplySQLiteSchema(context.Background(), conn); err != nil {
		t.Fatalf("%v", err)
	}
	return conn
}

// TierSeed is a compact tier description for seeding.
type TierSeed struct {
	MinQty    int
	UnitPrice string
}

// SeedItem inserts an active catalog item with the given tiers.
func SeedItem(t testing.TB, conn *gorm.DB, supplierID uuid.UUID, basePrice string, moq int, tiers ...TierSeed) models.CatalogItem {
	t.Helper()

	item := models.CatalogItem{
		ID:                   uuid.New(),
		SupplierID:           supplierID,
		SKU:                  "SKU-" + uuid.NewString()[:8],
		Name:                 "Item " + basePrice,
		Unit:                 enums.CatalogUnitKilogram,
		BasePrice:            decimal.RequireFromString(basePrice),
		MinimumOrderQuantity: moq,
		IsActive:             true,
	}
	for _, seed := range tiers {
		item.Tiers = append(item.Tiers, models.PriceTier{
			MinimumQuantity: seed.MinQty,
			UnitPrice:       decimal.RequireFromString(seed.UnitPrice),
		})
	}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("seed catalog item: %v", err)
	}
	return item
}
