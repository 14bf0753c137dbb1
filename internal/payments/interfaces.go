package payments

import (
	"context"

	"github.com/gasflowhq/gasflow-backend/pkg/db/models"
	"github.com/gasflowhq/gasflow-backend/pkg/intasend"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox"
	"github.com/gasflowhq/gasflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// FindByProviderReference is the idempotency lookup. Every channel dedupes
	// on the provider reference before writing.
	FindByProviderReference(ctx context.Context, reference string) (*models.Payment, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, string, error)
	FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CheckoutCreator abstracts the hosted-checkout provider. A nil value means
// card and mobile money checkout is disabled for the deployment.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req intasend.CheckoutRequest) (*intasend.CheckoutResponse, error)
}
