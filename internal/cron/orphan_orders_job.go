package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// orderCanceller is the slice of the cancellation service the sweeps use.
type orderCanceller interface {
	Cancel(ctx context.Context, input cancellation.Input) (*cancellation.Result, error)
}

// OrphanOrdersJobParams configure the abandoned-checkout sweep.
type OrphanOrdersJobParams struct {
	Logger    *logger.Logger
	Repo      SweepRepository
	Canceller orderCanceller
	Metrics   *metrics.SweepMetrics
	MaxAge    time.Duration
	BatchSize int
}

// NewOrphanOrdersJob builds the sweep that cancels orders stuck in
// pending_payment past the abandonment window. Unpaid orders refund nothing,
// so the cancel is a pure status flip through the operator path.
func NewOrphanOrdersJob(params OrphanOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sweep repository required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("canceller required")
	}
	if params.MaxAge <= 0 {
		params.MaxAge = 2 * time.Hour
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &orphanOrdersJob{
		logg:      params.Logger,
		repo:      params.Repo,
		canceller: params.Canceller,
		metrics:   params.Metrics,
		maxAge:    params.MaxAge,
		batchSize: params.BatchSize,
		now:       time.Now,
	}, nil
}

type orphanOrdersJob struct {
	logg      *logger.Logger
	repo      SweepRepository
	canceller orderCanceller
	metrics   *metrics.SweepMetrics
	maxAge    time.Duration
	batchSize int
	now       func() time.Time
}

func (j *orphanOrdersJob) Name() string { return "orphan-orders" }

func (j *orphanOrdersJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	orders, err := j.repo.FindOrphanOrders(ctx, cutoff, j.batchSize)
	if err != nil {
		return err
	}

	var errs error
	cancelled := 0
	for i := range orders {
		order := orders[i]
		_, err := j.canceller.Cancel(ctx, cancellation.Input{
			OrderID: order.ID,
			Actor:   enums.ActorOperator,
			Reason:  "abandoned before payment",
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		cancelled++
	}
	j.metrics.AddRows(j.Name(), "ok", cancelled)
	logCtx := j.logg.WithField(ctx, "count", cancelled)
	j.logg.Info(logCtx, "orphan order sweep complete")
	return errs
}
