package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// PayoutReversal claws back an already-confirmed payout. The original payout
// row is never mutated; the reversal is netted against the garage's next
// payout cycle instead. AmountMinor is the immutable audit record of what was
// reversed; RemainingMinor tracks the balance still to be netted.
type PayoutReversal struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GarageID         uuid.UUID            `gorm:"column:garage_id;type:uuid;not null;index"`
	OriginalPayoutID uuid.UUID            `gorm:"column:original_payout_id;type:uuid;not null"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	AmountMinor      int64                `gorm:"column:amount_minor;not null"`
	RemainingMinor   int64                `gorm:"column:remaining_minor;not null"`
	Status           enums.ReversalStatus `gorm:"column:status;type:reversal_status;not null;default:'pending'"`
	Reason           string               `gorm:"column:reason;not null"`
	AppliedPayoutID  *uuid.UUID           `gorm:"column:applied_payout_id;type:uuid"`
	AppliedAt        *time.Time           `gorm:"column:applied_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
}
