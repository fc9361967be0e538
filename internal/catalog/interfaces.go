package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
)

// ItemReader defines the persistence surface required by the catalog service.
type ItemReader interface {
	WithTx(tx *gorm.DB) ItemReader
	FindActiveItem(ctx context.Context, id uuid.UUID) (*models.CatalogItem, error)
	FindActiveItems(ctx context.Context, ids []uuid.UUID) ([]models.CatalogItem, error)
}
