package enums

import "fmt"

// CourierCancelReason is the mandatory reason code on courier cancellations.
// It drives fault attribution and therefore who pays the fee.
type CourierCancelReason string

const (
	CourierReasonCantFindGarage      CourierCancelReason = "cant_find_garage"
	CourierReasonVehicleIssue        CourierCancelReason = "vehicle_issue"
	CourierReasonPartDamagedAtPickup CourierCancelReason = "part_damaged_at_pickup"
	CourierReasonCustomerUnreachable CourierCancelReason = "customer_unreachable"
)

var validCourierCancelReasons = []CourierCancelReason{
	CourierReasonCantFindGarage,
	CourierReasonVehicleIssue,
	CourierReasonPartDamagedAtPickup,
	CourierReasonCustomerUnreachable,
}

// String implements fmt.Stringer.
func (c CourierCancelReason) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CourierCancelReason.
func (c CourierCancelReason) IsValid() bool {
	for _, candidate := range validCourierCancelReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCourierCancelReason converts raw input into a CourierCancelReason.
func ParseCourierCancelReason(value string) (CourierCancelReason, error) {
	for _, candidate := range validCourierCancelReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid courier cancel reason %q", value)
}
