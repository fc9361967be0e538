package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
)

// Repository reads catalog items and their volume tiers.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ItemReader {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActiveItem loads an active catalog item with its tiers.
func (r *Repository) FindActiveItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_qty ASC").Order("unit_price ASC")
		}).
		Where("id = ? AND is_active = ?", id, true).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindActiveItems loads the active items among ids. Missing or inactive ids are
// simply absent from the result.
func (r *Repository) FindActiveItems(ctx context.Context, ids []uuid.UUID) ([]models.CatalogItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.CatalogItem
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_qty ASC").Order("unit_price ASC")
		}).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
