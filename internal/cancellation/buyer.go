package cancellation

import (
	"context"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

// buyerStrategy lets the customer back out of any pre-delivery state at the
// price the stage schedule sets.
type buyerStrategy struct{}

var buyerCancellableStatuses = map[enums.OrderStatus]struct{}{
	enums.OrderStatusPendingPayment: {},
	enums.OrderStatusPaid:           {},
	enums.OrderStatusConfirmed:      {},
	enums.OrderStatusPreparing:      {},
	enums.OrderStatusReadyForPickup: {},
	enums.OrderStatusAssigned:       {},
	enums.OrderStatusPickedUp:       {},
	enums.OrderStatusInTransit:      {},
}

func (buyerStrategy) Actor() enums.ActorType { return enums.ActorCustomer }

func (buyerStrategy) CancelledStatus() enums.OrderStatus {
	return enums.OrderStatusCancelledByCustomer
}

func (buyerStrategy) Authorize(order *models.Order, input Input) error {
	if order.CustomerID != input.ActorID {
		return errors.New(errors.CodeForbidden, "not the order's customer")
	}
	return nil
}

func (buyerStrategy) AllowsStatus(status enums.OrderStatus) bool {
	_, ok := buyerCancellableStatuses[status]
	return ok
}

func (buyerStrategy) Price(order *models.Order, _ Input, stage enums.CancellationStage) (Quote, enums.FaultParty, error) {
	quote := CalculateFee(stage, order.PartPriceMinor, order.DeliveryFeeMinor, order.TotalMinor)
	fault := enums.FaultNone
	if quote.FeeMinor > 0 || quote.DeliveryRetainedMinor > 0 {
		fault = enums.FaultCustomer
	}
	return quote, fault, nil
}

func (buyerStrategy) MutateOrder(order *models.Order, _ Input) {
	releaseCourier(order)
}

func (buyerStrategy) SideEffects(context.Context, Repository, *models.Order, Input) error {
	return nil
}
