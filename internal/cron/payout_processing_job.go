package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// payoutProcessor drains due payouts.
type payoutProcessor interface {
	ProcessDue(ctx context.Context, limit int) (int, error)
}

// PayoutProcessingJobParams configure the payout cycle sweep.
type PayoutProcessingJobParams struct {
	Logger    *logger.Logger
	Repo      SweepRepository
	Payouts   payoutScheduler
	Processor payoutProcessor
	Metrics   *metrics.SweepMetrics
	BatchSize int
}

// NewPayoutProcessingJob builds the sweep that runs the payout cycle:
// backfill payout rows for completed orders that lack one, then process
// everything scheduled and due. Reversal netting, dispute holds, and refund
// cancellation all happen inside the processor.
func NewPayoutProcessingJob(params PayoutProcessingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sweep repository required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout scheduler required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("payout processor required")
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &payoutProcessingJob{
		logg:      params.Logger,
		repo:      params.Repo,
		payouts:   params.Payouts,
		processor: params.Processor,
		metrics:   params.Metrics,
		batchSize: params.BatchSize,
		now:       time.Now,
	}, nil
}

type payoutProcessingJob struct {
	logg      *logger.Logger
	repo      SweepRepository
	payouts   payoutScheduler
	processor payoutProcessor
	metrics   *metrics.SweepMetrics
	batchSize int
	now       func() time.Time
}

func (j *payoutProcessingJob) Name() string { return "payout-processing" }

func (j *payoutProcessingJob) Run(ctx context.Context) error {
	var errs error

	backfilled, err := j.backfillMissing(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	processed, err := j.processor.ProcessDue(ctx, j.batchSize)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	j.metrics.AddRows(j.Name(), "ok", backfilled+processed)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"backfilled": backfilled,
		"processed":  processed,
	})
	j.logg.Info(logCtx, "payout processing sweep complete")
	return errs
}

func (j *payoutProcessingJob) backfillMissing(ctx context.Context) (int, error) {
	orders, err := j.repo.FindCompletedWithoutPayout(ctx, j.batchSize)
	if err != nil {
		return 0, err
	}
	var errs error
	count := 0
	for i := range orders {
		order := orders[i]
		if _, err := j.payouts.ScheduleForOrder(ctx, &order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("backfill payout for order %s: %w", order.ID, err))
			continue
		}
		count++
	}
	return count, errs
}
