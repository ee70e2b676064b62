package enums

import "fmt"

// PayoutStatus tracks a garage payout through scheduling, holds, confirmation,
// and compensation review.
type PayoutStatus string

const (
	PayoutStatusPending                   PayoutStatus = "pending"
	PayoutStatusProcessing                PayoutStatus = "processing"
	PayoutStatusCompleted                 PayoutStatus = "completed"
	PayoutStatusHeld                      PayoutStatus = "held"
	PayoutStatusCancelled                 PayoutStatus = "cancelled"
	PayoutStatusAwaitingConfirmation      PayoutStatus = "awaiting_confirmation"
	PayoutStatusConfirmed                 PayoutStatus = "confirmed"
	PayoutStatusPendingCompensationReview PayoutStatus = "pending_compensation_review"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusCompleted,
	PayoutStatusHeld,
	PayoutStatusCancelled,
	PayoutStatusAwaitingConfirmation,
	PayoutStatusConfirmed,
	PayoutStatusPendingCompensationReview,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCancellable reports whether a refund may still void this payout outright.
// A confirmed payout is an immutable financial fact and must be reversed, not
// cancelled.
func (p PayoutStatus) IsCancellable() bool {
	switch p {
	case PayoutStatusPending,
		PayoutStatusProcessing,
		PayoutStatusHeld,
		PayoutStatusAwaitingConfirmation,
		PayoutStatusPendingCompensationReview:
		return true
	default:
		return false
	}
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
