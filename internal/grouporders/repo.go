package grouporders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
	"github.com/kiranahub/kiranahub-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a group order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.GroupOrder) error {
	return r.db.WithContext(ctx).Omit("Participations").Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.GroupOrder, error) {
	var order models.GroupOrder
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrders(ctx context.Context, filter ListFilter, limit int) ([]models.GroupOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.GroupOrder{})
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.ClusterID != nil {
		query = query.Where("cluster_id = ?", *filter.ClusterID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.After != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id <= ?)",
			filter.After.CreatedAt, filter.After.CreatedAt, filter.After.ID)
	}

	var rows []models.GroupOrder
	err := query.
		Preload("Participations", func(db *gorm.DB) *gorm.DB {
			return db.Order("submitted_at ASC").Order("id ASC")
		}).
		Preload("Participations.Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListParticipations(ctx context.Context, orderID uuid.UUID) ([]models.OrderParticipation, error) {
	var rows []models.OrderParticipation
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("group_order_id = ?", orderID).
		Order("submitted_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindParticipation(ctx context.Context, orderID, vendorID uuid.UUID) (*models.OrderParticipation, error) {
	var row models.OrderParticipation
	err := r.db.WithContext(ctx).
		Where("group_order_id = ? AND vendor_id = ?", orderID, vendorID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateParticipation inserts the participation and its lines.
func (r *repository) CreateParticipation(ctx context.Context, participation *models.OrderParticipation) error {
	return r.db.WithContext(ctx).Create(participation).Error
}

// DeleteParticipation removes the participation together with its lines.
func (r *repository) DeleteParticipation(ctx context.Context, participationID uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("participation_id = ?", participationID).Delete(&models.ParticipationLine{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", participationID).Delete(&models.OrderParticipation{}).Error
}

func (r *repository) UpdateTotals(ctx context.Context, orderID uuid.UUID, expectedVersion int, total, baseTotal decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Where("id = ? AND version = ?", orderID, expectedVersion).
		Updates(map[string]any{
			"total_amount":      total,
			"base_total_amount": baseTotal,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, expectedVersion int, status enums.GroupOrderStatus, changedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GroupOrder{}).
		Where("id = ? AND version = ?", orderID, expectedVersion).
		Updates(map[string]any{
			"status":            status,
			"status_changed_at": changedAt,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        changedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
