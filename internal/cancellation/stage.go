package cancellation

import (
	"fmt"

	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

// stageByStatus maps an order's lifecycle status to the cancellation stage
// that governs its fee schedule. Statuses absent from the map are either
// terminal or unknown and are handled by Classify.
var stageByStatus = map[enums.OrderStatus]enums.CancellationStage{
	enums.OrderStatusPendingPayment: enums.StageBeforePayment,
	enums.OrderStatusPaid:           enums.StageAfterPayment,
	enums.OrderStatusConfirmed:      enums.StageAfterPayment,
	enums.OrderStatusPreparing:      enums.StageDuringPreparation,
	enums.OrderStatusReadyForPickup: enums.StageDuringPreparation,
	enums.OrderStatusAssigned:       enums.StageInDelivery,
	enums.OrderStatusPickedUp:       enums.StageInDelivery,
	enums.OrderStatusInTransit:      enums.StageInDelivery,
	enums.OrderStatusDelivered:      enums.StageAfterDelivery,
	enums.OrderStatusDisputed:       enums.StageAfterDelivery,
	enums.OrderStatusCompleted:      enums.StageAfterDelivery,
}

// Classifier resolves the cancellation stage from an order status.
//
// Unknown statuses default to the most cancellation-friendly stage so a
// status added upstream before this core learns about it never strands an
// order; strict mode turns that default into a hard error instead.
type Classifier struct {
	strict bool
}

func NewClassifier(strict bool) *Classifier {
	return &Classifier{strict: strict}
}

func (c *Classifier) Classify(status enums.OrderStatus) (enums.CancellationStage, error) {
	switch {
	case status.IsCancelled():
		return enums.StageAlreadyCancelled, nil
	case status == enums.OrderStatusRefunded:
		return enums.StageAlreadyRefunded, nil
	}
	if stage, ok := stageByStatus[status]; ok {
		return stage, nil
	}
	if c.strict {
		return "", errors.New(errors.CodeStateConflict, fmt.Sprintf("no cancellation stage for order status %q", status))
	}
	return enums.StageBeforePayment, nil
}
