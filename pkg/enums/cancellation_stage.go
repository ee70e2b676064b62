package enums

import "fmt"

// CancellationStage buckets order statuses into the coarse windows the fee
// schedule is keyed on.
type CancellationStage string

const (
	StageBeforePayment     CancellationStage = "before_payment"
	StageAfterPayment      CancellationStage = "after_payment"
	StageDuringPreparation CancellationStage = "during_preparation"
	StageInDelivery        CancellationStage = "in_delivery"
	StageAfterDelivery     CancellationStage = "after_delivery"
	StageAlreadyCancelled  CancellationStage = "already_cancelled"
	StageAlreadyRefunded   CancellationStage = "already_refunded"
)

var validCancellationStages = []CancellationStage{
	StageBeforePayment,
	StageAfterPayment,
	StageDuringPreparation,
	StageInDelivery,
	StageAfterDelivery,
	StageAlreadyCancelled,
	StageAlreadyRefunded,
}

// String implements fmt.Stringer.
func (s CancellationStage) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CancellationStage.
func (s CancellationStage) IsValid() bool {
	for _, candidate := range validCancellationStages {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCancellationStage converts raw input into a CancellationStage.
func ParseCancellationStage(value string) (CancellationStage, error) {
	for _, candidate := range validCancellationStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancellation stage %q", value)
}
