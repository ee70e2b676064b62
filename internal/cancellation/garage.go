package cancellation

import (
	"context"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

// garageStrategy handles seller-initiated cancellations. The garage eats the
// fault: the customer is refunded in full and the garage's fulfillment rate
// takes the hit.
type garageStrategy struct{}

var garageCancellableStatuses = map[enums.OrderStatus]struct{}{
	enums.OrderStatusConfirmed:      {},
	enums.OrderStatusPreparing:      {},
	enums.OrderStatusReadyForPickup: {},
}

func (garageStrategy) Actor() enums.ActorType { return enums.ActorGarage }

func (garageStrategy) CancelledStatus() enums.OrderStatus {
	return enums.OrderStatusCancelledByGarage
}

func (garageStrategy) Authorize(order *models.Order, input Input) error {
	if order.GarageID != input.ActorID {
		return errors.New(errors.CodeForbidden, "not the order's garage")
	}
	return nil
}

func (garageStrategy) AllowsStatus(status enums.OrderStatus) bool {
	_, ok := garageCancellableStatuses[status]
	return ok
}

func (garageStrategy) Price(order *models.Order, _ Input, stage enums.CancellationStage) (Quote, enums.FaultParty, error) {
	return fullRefundQuote(stage, order.TotalMinor), enums.FaultGarage, nil
}

func (garageStrategy) MutateOrder(order *models.Order, _ Input) {
	releaseCourier(order)
}

func (garageStrategy) SideEffects(ctx context.Context, repo Repository, order *models.Order, _ Input) error {
	return repo.RecalcGarageStats(ctx, order.GarageID)
}
