package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CylinderCapacity is a catalog entry for a refillable cylinder size.
type CylinderCapacity struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Label     string          `gorm:"column:label;not null;unique"`
	Kg        decimal.Decimal `gorm:"column:kg;type:numeric(8,2);not null"`
	Active    bool            `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CylinderCapacity) TableName() string {
	return "cylinder_capacities"
}
