package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasflowhq/gasflow-backend/pkg/enums"
)

// Delivery records one cylinder drop-off and the charge it puts on the
// customer's balance. PricePerKgAtTime snapshots the customer rate at
// creation and only moves through a price revision.
type Delivery struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID       uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	TotalKg          decimal.Decimal      `gorm:"column:total_kg;type:numeric(10,2);not null"`
	PricePerKgAtTime decimal.Decimal      `gorm:"column:price_per_kg_at_time;type:numeric(12,2);not null"`
	TotalCharge      decimal.Decimal      `gorm:"column:total_charge;type:numeric(14,2);not null"`
	ManualAdjustment decimal.Decimal      `gorm:"column:manual_adjustment;type:numeric(14,2);not null;default:0"`
	Status           enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`
	DeliveryDate     time.Time            `gorm:"column:delivery_date;not null"`
	CreatedBy        uuid.UUID            `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Items []DeliveryItem `gorm:"foreignKey:DeliveryID"`
}

// DeliveryItem is one cylinder line on a delivery. KgContribution is
// quantity times the capacity's kg, frozen at creation.
type DeliveryItem struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID         uuid.UUID       `gorm:"column:delivery_id;type:uuid;not null;index"`
	CylinderCapacityID uuid.UUID       `gorm:"column:cylinder_capacity_id;type:uuid;not null"`
	Quantity           int             `gorm:"column:quantity;not null"`
	KgContribution     decimal.Decimal `gorm:"column:kg_contribution;type:numeric(10,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
}
