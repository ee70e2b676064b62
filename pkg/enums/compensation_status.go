package enums

import "fmt"

// CompensationStatus is the only mutable field on a cancellation request. It
// tracks the manual adjudication of the garage's fee share.
type CompensationStatus string

const (
	CompensationStatusNone          CompensationStatus = "none"
	CompensationStatusPendingReview CompensationStatus = "pending_review"
	CompensationStatusApproved      CompensationStatus = "approved"
	CompensationStatusDenied        CompensationStatus = "denied"
)

var validCompensationStatuses = []CompensationStatus{
	CompensationStatusNone,
	CompensationStatusPendingReview,
	CompensationStatusApproved,
	CompensationStatusDenied,
}

// String implements fmt.Stringer.
func (c CompensationStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CompensationStatus.
func (c CompensationStatus) IsValid() bool {
	for _, candidate := range validCompensationStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCompensationStatus converts raw input into a CompensationStatus.
func ParseCompensationStatus(value string) (CompensationStatus, error) {
	for _, candidate := range validCompensationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid compensation status %q", value)
}
