package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// payoutConfirmer finalizes aged completed payouts.
type payoutConfirmer interface {
	ConfirmAged(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// PayoutConfirmJobParams configure the payout confirmation sweep.
type PayoutConfirmJobParams struct {
	Logger       *logger.Logger
	Payouts      payoutConfirmer
	Metrics      *metrics.SweepMetrics
	ConfirmAfter time.Duration
	BatchSize    int
}

// NewPayoutConfirmJob builds the sweep that advances aged payouts through
// completed → awaiting_confirmation → confirmed, one step per cycle.
// Confirmed payouts are immutable; later refunds against them become
// reversals.
func NewPayoutConfirmJob(params PayoutConfirmJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout confirmer required")
	}
	if params.ConfirmAfter <= 0 {
		params.ConfirmAfter = 24 * time.Hour
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &payoutConfirmJob{
		logg:         params.Logger,
		payouts:      params.Payouts,
		metrics:      params.Metrics,
		confirmAfter: params.ConfirmAfter,
		batchSize:    params.BatchSize,
		now:          time.Now,
	}, nil
}

type payoutConfirmJob struct {
	logg         *logger.Logger
	payouts      payoutConfirmer
	metrics      *metrics.SweepMetrics
	confirmAfter time.Duration
	batchSize    int
	now          func() time.Time
}

func (j *payoutConfirmJob) Name() string { return "payout-autoconfirm" }

func (j *payoutConfirmJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.confirmAfter)
	confirmed, err := j.payouts.ConfirmAged(ctx, cutoff, j.batchSize)
	j.metrics.AddRows(j.Name(), "ok", confirmed)
	logCtx := j.logg.WithField(ctx, "count", confirmed)
	j.logg.Info(logCtx, "payout confirmation sweep complete")
	return err
}
