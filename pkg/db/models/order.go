package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// Order is a single part-delivery order between a customer, a garage, and
// (once assigned) a courier. Monetary amounts are QAR minor units (dirhams).
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      int64               `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	GarageID         uuid.UUID           `gorm:"column:garage_id;type:uuid;not null;index"`
	CourierID        *uuid.UUID          `gorm:"column:courier_id;type:uuid"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	PaymentRef       *string             `gorm:"column:payment_ref"`
	Currency         string              `gorm:"column:currency;not null;default:'QAR'"`
	PartPriceMinor   int64               `gorm:"column:part_price_minor;not null"`
	DeliveryFeeMinor int64               `gorm:"column:delivery_fee_minor;not null;default:0"`
	TotalMinor       int64               `gorm:"column:total_minor;not null"`
	PartDescription  *string             `gorm:"column:part_description"`
	ConfirmedAt      *time.Time          `gorm:"column:confirmed_at"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	CompletedAt      *time.Time          `gorm:"column:completed_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
