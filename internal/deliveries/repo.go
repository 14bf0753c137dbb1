package deliveries

import (
	"context"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Omit("Items").Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) CreateDeliveryItems(ctx context.Context, items []models.DeliveryItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Delivery, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Delivery
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return rows, nextCursor, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DeliveryStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) UpdateCharge(ctx context.Context, id uuid.UUID, pricePerKg, totalCharge decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"price_per_kg_at_time": pricePerKg,
			"total_charge":         totalCharge,
		}).Error
}

func (r *repository) DeleteDelivery(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("delivery_id = ?", id).
		Delete(&models.DeliveryItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Delivery{}).Error
}

func (r *repository) CountPaymentsForDelivery(ctx context.Context, deliveryID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("delivery_id = ?", deliveryID).
		Count(&count).Error
	return count, err
}

func (r *repository) FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("id = ?", customerID).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindCapacities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CylinderCapacity, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.CylinderCapacity{}, nil
	}
	var rows []models.CylinderCapacity
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.CylinderCapacity, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
