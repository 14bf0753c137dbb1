package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Customer is the billing account a delivery or payment attaches to.
// Balance is signed: positive means arrears, negative means credit.
type Customer struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string          `gorm:"column:name;not null"`
	Phone      *string         `gorm:"column:phone"`
	Email      *string         `gorm:"column:email"`
	Location   *string         `gorm:"column:location"`
	PricePerKg decimal.Decimal `gorm:"column:price_per_kg;type:numeric(12,2);not null"`
	Balance    decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	Tags       pq.StringArray  `gorm:"column:tags;type:text[]"`
	RetiredAt  *time.Time      `gorm:"column:retired_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Retired reports whether the customer has been soft-retired.
func (c Customer) Retired() bool {
	return c.RetiredAt != nil
}
