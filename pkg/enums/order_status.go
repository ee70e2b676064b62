package enums

import "fmt"

// OrderStatus tracks the lifecycle of a marketplace order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusAssigned       OrderStatus = "assigned"
	OrderStatusPickedUp       OrderStatus = "picked_up"
	OrderStatusInTransit      OrderStatus = "in_transit"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusDisputed       OrderStatus = "disputed"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusRefunded       OrderStatus = "refunded"

	OrderStatusCancelledByCustomer OrderStatus = "cancelled_by_customer"
	OrderStatusCancelledByGarage   OrderStatus = "cancelled_by_garage"
	OrderStatusCancelledByCourier  OrderStatus = "cancelled_by_courier"
	OrderStatusCancelledByOperator OrderStatus = "cancelled_by_operator"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReadyForPickup,
	OrderStatusAssigned,
	OrderStatusPickedUp,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusDisputed,
	OrderStatusCompleted,
	OrderStatusRefunded,
	OrderStatusCancelledByCustomer,
	OrderStatusCancelledByGarage,
	OrderStatusCancelledByCourier,
	OrderStatusCancelledByOperator,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsCancelled reports whether the status is one of the cancelled_by variants.
func (o OrderStatus) IsCancelled() bool {
	switch o {
	case OrderStatusCancelledByCustomer,
		OrderStatusCancelledByGarage,
		OrderStatusCancelledByCourier,
		OrderStatusCancelledByOperator:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further lifecycle transitions are allowed.
func (o OrderStatus) IsTerminal() bool {
	if o.IsCancelled() {
		return true
	}
	switch o {
	case OrderStatusCompleted, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
