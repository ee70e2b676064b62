package notify

import (
	"fmt"

	"github.com/google/uuid"
)

const OpsChannel = "ops"

func CustomerChannel(id uuid.UUID) string { return fmt.Sprintf("customers:%s", id) }
func GarageChannel(id uuid.UUID) string   { return fmt.Sprintf("garages:%s", id) }
func CourierChannel(id uuid.UUID) string  { return fmt.Sprintf("couriers:%s", id) }

// Event names published by the financial core.
const (
	EventOrderCancelled       = "order.cancelled"
	EventRefundCompleted      = "refund.completed"
	EventRefundFailed         = "refund.failed"
	EventPayoutHeld           = "payout.held"
	EventPayoutReleased       = "payout.released"
	EventPayoutReversed       = "payout.reversed"
	EventCompensationReviewed = "compensation.reviewed"
	EventDisputeOpened        = "dispute.opened"
	EventDisputeResolved      = "dispute.resolved"
)
