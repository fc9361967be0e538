package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for local sqlite databases.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_items (
  id TEXT PRIMARY KEY,
  supplier_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  base_price TEXT NOT NULL,
  moq INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS price_tiers (
  id TEXT PRIMARY KEY,
  catalog_item_id TEXT NOT NULL REFERENCES catalog_items(id) ON DELETE CASCADE,
  min_qty INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS group_orders (
  id TEXT PRIMARY KEY,
  supplier_id TEXT NOT NULL,
  cluster_id TEXT,
  created_by_vendor_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount TEXT NOT NULL DEFAULT '0',
  base_total_amount TEXT NOT NULL DEFAULT '0',
  version INTEGER NOT NULL DEFAULT 1,
  notes TEXT,
  status_changed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS order_participations (
  id TEXT PRIMARY KEY,
  group_order_id TEXT NOT NULL REFERENCES group_orders(id) ON DELETE CASCADE,
  vendor_id TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  base_total_amount TEXT NOT NULL,
  submitted_at DATETIME NOT NULL,
  created_at DATETIME,
  UNIQUE (group_order_id, vendor_id)
);`,
	`CREATE TABLE IF NOT EXISTS participation_lines (
  id TEXT PRIMARY KEY,
  participation_id TEXT NOT NULL REFERENCES order_participations(id) ON DELETE CASCADE,
  catalog_item_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  base_price TEXT NOT NULL,
  unit_price_applied TEXT NOT NULL,
  applied_tier_min_qty INTEGER,
  applied_tier_unit_price TEXT,
  line_total TEXT NOT NULL,
  base_total TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  dead_lettered_at DATETIME
);`,
}

// ApplySQLiteSchema creates the service tables on a sqlite connection. It is
// idempotent.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
