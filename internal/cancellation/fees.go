package cancellation

import (
	"github.com/shopspring/decimal"

	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/money"
)

// Quote is the monetary outcome of a cancellation before policy adjustments.
// Amounts are QAR minor units and always satisfy
// RefundMinor + FeeMinor + DeliveryRetainedMinor == totalMinor.
type Quote struct {
	Stage                 enums.CancellationStage
	Rate                  decimal.Decimal
	FeeMinor              int64
	DeliveryRetainedMinor int64
	RefundMinor           int64
	Cancellable           bool
	FirstFreeApplied      bool
}

var (
	rateZero        = decimal.Zero
	rateAfterPay    = decimal.RequireFromString("0.05")
	rateMidFlight   = decimal.RequireFromString("0.10")
)

// feeRule is one row of the stage fee schedule.
type feeRule struct {
	rate           decimal.Decimal
	retainDelivery bool
}

var feeSchedule = map[enums.CancellationStage]feeRule{
	enums.StageBeforePayment:     {rate: rateZero},
	enums.StageAfterPayment:      {rate: rateAfterPay},
	enums.StageDuringPreparation: {rate: rateMidFlight},
	enums.StageInDelivery:        {rate: rateMidFlight, retainDelivery: true},
}

// CalculateFee prices a cancellation. The fee rate applies to the part price
// only, never to the delivery fee; the delivery fee is retained in full once
// the part is on the road. Stages past delivery, and terminal stages, are not
// cancellable through this path.
func CalculateFee(stage enums.CancellationStage, partPriceMinor, deliveryFeeMinor, totalMinor int64) Quote {
	rule, ok := feeSchedule[stage]
	if !ok {
		return Quote{Stage: stage, Rate: rateZero, Cancellable: false}
	}

	quote := Quote{
		Stage:       stage,
		Rate:        rule.rate,
		FeeMinor:    money.ApplyRate(partPriceMinor, rule.rate),
		Cancellable: true,
	}
	if rule.retainDelivery {
		quote.DeliveryRetainedMinor = deliveryFeeMinor
	}
	quote.RefundMinor = refundFor(totalMinor, quote.FeeMinor, quote.DeliveryRetainedMinor)
	return quote
}

// refundFor keeps the books balanced: whatever is not retained goes back.
func refundFor(totalMinor, feeMinor, deliveryRetainedMinor int64) int64 {
	refund := totalMinor - feeMinor - deliveryRetainedMinor
	if refund < 0 {
		return 0
	}
	return refund
}
