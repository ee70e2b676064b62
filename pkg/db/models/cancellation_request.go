package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// CancellationRequest is the immutable audit row written once per
// cancellation attempt. Only CompensationStatus may change after creation,
// and only through manual review.
type CancellationRequest struct {
	ID                       uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                  uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index"`
	RequestedBy              uuid.UUID                  `gorm:"column:requested_by;type:uuid;not null;index"`
	RequestedByType          enums.ActorType            `gorm:"column:requested_by_type;type:actor_type;not null"`
	Reason                   string                     `gorm:"column:reason;not null"`
	ReasonCode               *enums.CourierCancelReason `gorm:"column:reason_code;type:courier_cancel_reason"`
	Stage                    enums.CancellationStage    `gorm:"column:stage;type:cancellation_stage;not null"`
	FaultParty               enums.FaultParty           `gorm:"column:fault_party;type:fault_party;not null;default:'none'"`
	MinutesSinceOrder        int64                      `gorm:"column:minutes_since_order;not null"`
	FeeRate                  string                     `gorm:"column:fee_rate;type:numeric(5,4);not null"`
	FeeMinor                 int64                      `gorm:"column:fee_minor;not null"`
	DeliveryFeeRetainedMinor int64                      `gorm:"column:delivery_fee_retained_minor;not null;default:0"`
	RefundMinor              int64                      `gorm:"column:refund_minor;not null"`
	FirstFreeApplied         bool                       `gorm:"column:first_free_applied;not null;default:false"`
	CompensationStatus       enums.CompensationStatus   `gorm:"column:compensation_status;type:compensation_status;not null;default:'none'"`
	CreatedAt                time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
