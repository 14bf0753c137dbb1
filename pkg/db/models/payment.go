package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasflowhq/gasflow-backend/pkg/enums"
)

// Payment is an inbound money event. ProviderReference carries the
// dedupe key for every channel; the unique index on it is what stops a
// redelivered webhook from charging twice.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID        uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	DeliveryID        *uuid.UUID          `gorm:"column:delivery_id;type:uuid;index"`
	AmountPaid        decimal.Decimal     `gorm:"column:amount_paid;type:numeric(14,2);not null"`
	Method            enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	ProviderReference string              `gorm:"column:provider_reference;not null;uniqueIndex:uq_payments_provider_reference"`
	Currency          string              `gorm:"column:currency;not null;default:'KES'"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	HandledBy         *uuid.UUID          `gorm:"column:handled_by;type:uuid"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
