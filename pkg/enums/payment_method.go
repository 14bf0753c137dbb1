package enums

import "fmt"

// PaymentMethod identifies the channel a payment arrived through.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodBank        PaymentMethod = "bank"
	PaymentMethodCard        PaymentMethod = "card"
	// PaymentMethodCreditApplication marks synthetic payments created when
	// existing customer credit is offset against a new charge.
	PaymentMethodCreditApplication PaymentMethod = "credit_application"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodMobileMoney,
	PaymentMethodBank,
	PaymentMethodCard,
	PaymentMethodCreditApplication,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
