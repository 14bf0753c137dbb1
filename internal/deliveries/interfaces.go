package deliveries

import (
	"context"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository defines persistence operations for deliveries and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	CreateDeliveryItems(ctx context.Context, items []models.DeliveryItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	// FindByIDForUpdate takes a row lock so lock-status re-checks hold until
	// the surrounding transaction commits.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Delivery, string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DeliveryStatus) error
	UpdateCharge(ctx context.Context, id uuid.UUID, pricePerKg, totalCharge decimal.Decimal) error
	DeleteDelivery(ctx context.Context, id uuid.UUID) error
	CountPaymentsForDelivery(ctx context.Context, deliveryID uuid.UUID) (int64, error)
	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	FindCapacities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CylinderCapacity, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreditSettler offsets existing customer credit against a fresh charge. The
// call happens after the delivery transaction has committed and is best-effort.
type CreditSettler interface {
	SettleCredit(ctx context.Context, customerID, deliveryID uuid.UUID, priorBalance, newCharge decimal.Decimal) error
}
