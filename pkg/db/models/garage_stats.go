package models

import (
	"time"

	"github.com/google/uuid"
)

// GarageStats is the per-garage fulfillment aggregate recalculated when a
// garage cancels or breaches the preparation SLA.
type GarageStats struct {
	GarageID        uuid.UUID `gorm:"column:garage_id;type:uuid;primaryKey"`
	CompletedOrders int64     `gorm:"column:completed_orders;not null;default:0"`
	CancelledOrders int64     `gorm:"column:cancelled_orders;not null;default:0"`
	FulfillmentRate float64   `gorm:"column:fulfillment_rate;not null;default:1"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
