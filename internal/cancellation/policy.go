package cancellation

import (
	"github.com/shopspring/decimal"

	"github.com/partdash/partdash-backend/pkg/config"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/money"
)

// PolicyAdjuster layers the exception policy over the base fee schedule:
// first-cancellation-free for buyers, then the configured fee cap. Order of
// application matters only in theory today (a zeroed fee is below any cap),
// but keep free-check first if more policies land here.
type PolicyAdjuster struct {
	maxFeeMinor int64
	firstFree   bool
}

func NewPolicyAdjuster(cfg config.CancellationConfig) *PolicyAdjuster {
	return &PolicyAdjuster{
		maxFeeMinor: cfg.MaxFeeMinor,
		firstFree:   cfg.FirstCancellationFree,
	}
}

// Adjust applies the policy exceptions to a quote. priorCancellations must be
// counted on the same transaction snapshot that writes the audit row, so two
// racing first cancellations cannot both come out free.
func (p *PolicyAdjuster) Adjust(quote Quote, actor enums.ActorType, totalMinor int64, priorCancellations int64) Quote {
	if !quote.Cancellable {
		return quote
	}

	if p.firstFree && actor == enums.ActorCustomer && priorCancellations == 0 && quote.FeeMinor > 0 {
		quote.FeeMinor = 0
		quote.Rate = decimal.Zero
		quote.FirstFreeApplied = true
	}

	quote.FeeMinor = money.Clamp(quote.FeeMinor, p.maxFeeMinor)
	quote.RefundMinor = refundFor(totalMinor, quote.FeeMinor, quote.DeliveryRetainedMinor)
	return quote
}
