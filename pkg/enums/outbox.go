package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateDelivery OutboxAggregateType = "delivery"
	AggregatePayment  OutboxAggregateType = "payment"
	AggregateCustomer OutboxAggregateType = "customer"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDelivery,
	AggregatePayment,
	AggregateCustomer,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventDeliveryCreated       OutboxEventType = "delivery_created"
	EventDeliveryStatusChanged OutboxEventType = "delivery_status_changed"
	EventDeliveryDeleted       OutboxEventType = "delivery_deleted"
	EventDeliveryPriceRevised  OutboxEventType = "delivery_price_revised"
	EventPaymentRecorded       OutboxEventType = "payment_recorded"
	EventReceiptRequested      OutboxEventType = "receipt_requested"
	EventCreditApplied         OutboxEventType = "credit_applied"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDeliveryCreated,
	EventDeliveryStatusChanged,
	EventDeliveryDeleted,
	EventDeliveryPriceRevised,
	EventPaymentRecorded,
	EventReceiptRequested,
	EventCreditApplied,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
