package cancellation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
)

// Input is one cancellation attempt.
type Input struct {
	OrderID    uuid.UUID
	ActorID    uuid.UUID
	Actor      enums.ActorType
	Reason     string
	ReasonCode *enums.CourierCancelReason
}

// Strategy is the per-actor slice of the cancellation workflow: who may
// cancel what, which cancelled status results, how fault and money are
// attributed, and which dependent rows change. The shared orchestration
// (locking, audit, refund, payout reconciliation) lives in Service.
type Strategy interface {
	Actor() enums.ActorType
	CancelledStatus() enums.OrderStatus

	// Authorize checks the caller is the order's counterpart.
	Authorize(order *models.Order, input Input) error

	// AllowsStatus reports whether this actor may cancel from the status.
	AllowsStatus(status enums.OrderStatus) bool

	// Price computes fault attribution and the money outcome for the stage.
	Price(order *models.Order, input Input, stage enums.CancellationStage) (Quote, enums.FaultParty, error)

	// MutateOrder applies field changes beyond the status flip, before the
	// order row is saved. Courier release happens here.
	MutateOrder(order *models.Order, input Input)

	// SideEffects writes dependent rows after the order row is saved, still
	// inside the transaction: penalty records, fulfillment aggregates.
	SideEffects(ctx context.Context, repo Repository, order *models.Order, input Input) error
}

// fullRefundQuote prices a no-fault cancellation: nothing retained.
func fullRefundQuote(stage enums.CancellationStage, totalMinor int64) Quote {
	return Quote{
		Stage:       stage,
		Rate:        decimal.Zero,
		RefundMinor: totalMinor,
		Cancellable: true,
	}
}

// releaseCourier drops a held courier assignment so the courier pool frees up
// inside the same transaction that cancels the order.
func releaseCourier(order *models.Order) {
	order.CourierID = nil
}
