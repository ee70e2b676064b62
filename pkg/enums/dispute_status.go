package enums

import "fmt"

// DisputeStatus tracks a delivery dispute raised by a buyer.
type DisputeStatus string

const (
	DisputeStatusOpen             DisputeStatus = "open"
	DisputeStatusResolvedRefund   DisputeStatus = "resolved_refund"
	DisputeStatusResolvedRejected DisputeStatus = "resolved_rejected"
	DisputeStatusAutoResolved     DisputeStatus = "auto_resolved"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusResolvedRefund,
	DisputeStatusResolvedRejected,
	DisputeStatusAutoResolved,
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}
