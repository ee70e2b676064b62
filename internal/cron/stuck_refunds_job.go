package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// refundRetrier re-drives refunds parked in pending or processing.
type refundRetrier interface {
	RetryStuck(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// StuckRefundsJobParams configure the stuck-refund sweep.
type StuckRefundsJobParams struct {
	Logger    *logger.Logger
	Refunds   refundRetrier
	Metrics   *metrics.SweepMetrics
	StuckAge  time.Duration
	BatchSize int
}

// NewStuckRefundsJob builds the sweep that re-executes refunds stranded in a
// non-terminal state, usually by a crash on either side of the gateway call.
// The idempotency key is derived from the refund row, so a retry can never
// double-refund. Failed refunds are out of scope; those need an operator.
func NewStuckRefundsJob(params StuckRefundsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund retrier required")
	}
	if params.StuckAge <= 0 {
		params.StuckAge = 15 * time.Minute
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &stuckRefundsJob{
		logg:      params.Logger,
		refunds:   params.Refunds,
		metrics:   params.Metrics,
		stuckAge:  params.StuckAge,
		batchSize: params.BatchSize,
		now:       time.Now,
	}, nil
}

type stuckRefundsJob struct {
	logg      *logger.Logger
	refunds   refundRetrier
	metrics   *metrics.SweepMetrics
	stuckAge  time.Duration
	batchSize int
	now       func() time.Time
}

func (j *stuckRefundsJob) Name() string { return "stuck-refunds" }

func (j *stuckRefundsJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.stuckAge)
	retried, err := j.refunds.RetryStuck(ctx, cutoff, j.batchSize)
	j.metrics.AddRows(j.Name(), "ok", retried)
	logCtx := j.logg.WithField(ctx, "count", retried)
	j.logg.Info(logCtx, "stuck refund sweep complete")
	return err
}
