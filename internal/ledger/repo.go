package ledger

import (
	"context"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository manages persistence for the customer balance row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// AdjustBalance applies delta as a single atomic increment and returns
	// the post-update balance. Never read-then-write: concurrent callers on
	// the same customer must each land their full delta.
	AdjustBalance(ctx context.Context, customerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, bool, error)
	GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error)
	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) AdjustBalance(ctx context.Context, customerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, bool, error) {
	var row struct {
		Balance decimal.Decimal
	}
	res := r.db.WithContext(ctx).
		Raw(
			"UPDATE customers SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? RETURNING balance",
			delta, customerID,
		).
		Scan(&row)
	if res.Error != nil {
		return decimal.Zero, false, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, false, nil
	}
	return row.Balance, true, nil
}

func (r *repository) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Select("balance").
		Where("id = ?", customerID).
		First(&customer).Error
	if err != nil {
		return decimal.Zero, err
	}
	return customer.Balance, nil
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
