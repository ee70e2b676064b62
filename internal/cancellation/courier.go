package cancellation

import (
	"context"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/money"
)

// courierStrategy handles delivery-side cancellations. The mandatory reason
// code drives fault attribution: platform and garage faults refund the
// customer in full, while an unreachable customer pays the mid-flight fee
// plus the full delivery fee.
type courierStrategy struct{}

var courierCancellableStatuses = map[enums.OrderStatus]struct{}{
	enums.OrderStatusAssigned:  {},
	enums.OrderStatusPickedUp:  {},
	enums.OrderStatusInTransit: {},
}

func (courierStrategy) Actor() enums.ActorType { return enums.ActorCourier }

func (courierStrategy) CancelledStatus() enums.OrderStatus {
	return enums.OrderStatusCancelledByCourier
}

func (courierStrategy) Authorize(order *models.Order, input Input) error {
	if order.CourierID == nil || *order.CourierID != input.ActorID {
		return errors.New(errors.CodeForbidden, "not the order's courier")
	}
	return nil
}

func (courierStrategy) AllowsStatus(status enums.OrderStatus) bool {
	_, ok := courierCancellableStatuses[status]
	return ok
}

func (courierStrategy) Price(order *models.Order, input Input, stage enums.CancellationStage) (Quote, enums.FaultParty, error) {
	if input.ReasonCode == nil {
		return Quote{}, "", errors.New(errors.CodeValidation, "courier cancellations require a reason code")
	}
	reason := *input.ReasonCode
	if !reason.IsValid() {
		return Quote{}, "", errors.New(errors.CodeValidation, "unknown courier cancel reason")
	}

	switch reason {
	case enums.CourierReasonCantFindGarage, enums.CourierReasonVehicleIssue:
		return fullRefundQuote(stage, order.TotalMinor), enums.FaultPlatform, nil
	case enums.CourierReasonPartDamagedAtPickup:
		return fullRefundQuote(stage, order.TotalMinor), enums.FaultGarage, nil
	case enums.CourierReasonCustomerUnreachable:
		quote := Quote{
			Stage:                 stage,
			Rate:                  rateMidFlight,
			FeeMinor:              money.ApplyRate(order.PartPriceMinor, rateMidFlight),
			DeliveryRetainedMinor: order.DeliveryFeeMinor,
			Cancellable:           true,
		}
		quote.RefundMinor = refundFor(order.TotalMinor, quote.FeeMinor, quote.DeliveryRetainedMinor)
		return quote, enums.FaultCustomer, nil
	default:
		return Quote{}, "", errors.New(errors.CodeValidation, "unknown courier cancel reason")
	}
}

func (courierStrategy) MutateOrder(order *models.Order, _ Input) {
	releaseCourier(order)
}

func (courierStrategy) SideEffects(ctx context.Context, repo Repository, order *models.Order, input Input) error {
	if input.ReasonCode == nil || *input.ReasonCode != enums.CourierReasonPartDamagedAtPickup {
		return nil
	}
	note := "part damaged at pickup, reported by courier"
	penalty := &models.GaragePenalty{
		GarageID: order.GarageID,
		OrderID:  order.ID,
		Kind:     enums.PenaltyDamagedPart,
		Note:     &note,
	}
	if err := repo.CreatePenalty(ctx, penalty); err != nil {
		return err
	}
	return repo.RecalcGarageStats(ctx, order.GarageID)
}
