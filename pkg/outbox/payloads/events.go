package payloads

import (
	"time"

	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryCreatedEvent signals a new delivery was logged and charged.
type DeliveryCreatedEvent struct {
	DeliveryID  uuid.UUID       `json:"delivery_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	TotalKg     decimal.Decimal `json:"total_kg"`
	TotalCharge decimal.Decimal `json:"total_charge"`
	NewBalance  decimal.Decimal `json:"new_balance"`
}

// DeliveryStatusChangedEvent is emitted on every forward status transition.
type DeliveryStatusChangedEvent struct {
	DeliveryID uuid.UUID            `json:"delivery_id"`
	CustomerID uuid.UUID            `json:"customer_id"`
	OldStatus  enums.DeliveryStatus `json:"old_status"`
	NewStatus  enums.DeliveryStatus `json:"new_status"`
	ChangedAt  time.Time            `json:"changed_at"`
}

// DeliveryDeletedEvent reports a pending delivery removal and the reversed charge.
type DeliveryDeletedEvent struct {
	DeliveryID     uuid.UUID       `json:"delivery_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	ReversedAmount decimal.Decimal `json:"reversed_amount"`
}

// DeliveryPriceRevisedEvent carries the recomputed charge after a price edit.
type DeliveryPriceRevisedEvent struct {
	DeliveryID     uuid.UUID       `json:"delivery_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	OldPricePerKg  decimal.Decimal `json:"old_price_per_kg"`
	NewPricePerKg  decimal.Decimal `json:"new_price_per_kg"`
	OldTotalCharge decimal.Decimal `json:"old_total_charge"`
	NewTotalCharge decimal.Decimal `json:"new_total_charge"`
	Delta          decimal.Decimal `json:"delta"`
}

// PaymentRecordedEvent is emitted when a completed payment lands on the ledger.
type PaymentRecordedEvent struct {
	PaymentID         uuid.UUID           `json:"payment_id"`
	CustomerID        uuid.UUID           `json:"customer_id"`
	DeliveryID        *uuid.UUID          `json:"delivery_id,omitempty"`
	Amount            decimal.Decimal     `json:"amount"`
	Method            enums.PaymentMethod `json:"method"`
	ProviderReference string              `json:"provider_reference"`
	NewBalance        decimal.Decimal     `json:"new_balance"`
}

// ReceiptRequestedEvent tells downstream systems to render and send a receipt.
type ReceiptRequestedEvent struct {
	PaymentID  uuid.UUID           `json:"payment_id"`
	CustomerID uuid.UUID           `json:"customer_id"`
	Amount     decimal.Decimal     `json:"amount"`
	Method     enums.PaymentMethod `json:"method"`
	PaidAt     time.Time           `json:"paid_at"`
}

// CreditAppliedEvent reports an automatic credit offset against a new charge.
type CreditAppliedEvent struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	DeliveryID uuid.UUID       `json:"delivery_id"`
	Amount     decimal.Decimal `json:"amount"`
}
