package enums

import "fmt"

// DeliveryStatus tracks the forward-only lifecycle of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusEnRoute   DeliveryStatus = "en_route"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusEnRoute,
	DeliveryStatusDelivered,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the status machine permits moving to next.
// Transitions only move forward; a same-state request is treated as a no-op
// by the caller, not as a transition.
func (d DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	switch d {
	case DeliveryStatusPending:
		return next == DeliveryStatusEnRoute
	case DeliveryStatusEnRoute:
		return next == DeliveryStatusDelivered
	default:
		return false
	}
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
