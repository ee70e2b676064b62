package cancellation

import (
	"context"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
)

// operatorStrategy is the platform remediation path. It may cancel any
// non-terminal order, refunds in full, and is the only path that replays an
// already-terminal order instead of rejecting it. The sweeps run through
// this strategy, so re-entrancy matters more than strict ownership.
type operatorStrategy struct{}

func (operatorStrategy) Actor() enums.ActorType { return enums.ActorOperator }

func (operatorStrategy) CancelledStatus() enums.OrderStatus {
	return enums.OrderStatusCancelledByOperator
}

func (operatorStrategy) Authorize(*models.Order, Input) error {
	// Operators act on any order; authn happens at the API edge.
	return nil
}

func (operatorStrategy) AllowsStatus(status enums.OrderStatus) bool {
	return !status.IsTerminal()
}

func (operatorStrategy) Price(order *models.Order, _ Input, stage enums.CancellationStage) (Quote, enums.FaultParty, error) {
	return fullRefundQuote(stage, order.TotalMinor), enums.FaultPlatform, nil
}

func (operatorStrategy) MutateOrder(order *models.Order, _ Input) {
	releaseCourier(order)
}

func (operatorStrategy) SideEffects(context.Context, Repository, *models.Order, Input) error {
	return nil
}
