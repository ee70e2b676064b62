package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// Refund mirrors one refund attempt against the payment gateway. The partial
// unique index ux_refunds_order_active enforces at most one non-failed refund
// per order.
type Refund struct {
	ID                       uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                  uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	OriginalMinor            int64              `gorm:"column:original_minor;not null"`
	RefundMinor              int64              `gorm:"column:refund_minor;not null"`
	FeeRetainedMinor         int64              `gorm:"column:fee_retained_minor;not null;default:0"`
	DeliveryFeeRetainedMinor int64              `gorm:"column:delivery_fee_retained_minor;not null;default:0"`
	Status                   enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	ExternalRef              *string            `gorm:"column:external_ref"`
	FailureReason            *string            `gorm:"column:failure_reason"`
	CreatedAt                time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
