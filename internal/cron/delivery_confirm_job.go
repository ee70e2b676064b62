package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// payoutScheduler creates the garage payout once an order completes.
type payoutScheduler interface {
	ScheduleForOrder(ctx context.Context, order *models.Order) (*models.GaragePayout, error)
}

// DeliveryConfirmJobParams configure a delivery auto-confirm sweep.
type DeliveryConfirmJobParams struct {
	Logger    *logger.Logger
	Repo      SweepRepository
	Payouts   payoutScheduler
	Metrics   *metrics.SweepMetrics
	JobName   string
	GraceAge  time.Duration
	BatchSize int
}

// NewDeliveryConfirmJob builds a sweep that completes delivered orders the
// customer never confirmed nor disputed inside the grace window, then
// schedules the garage payout. Two instances run in production with different
// windows; which window is authoritative is an operations call, and the order
// query makes a second pass over an already-completed order a no-op.
func NewDeliveryConfirmJob(params DeliveryConfirmJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sweep repository required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout scheduler required")
	}
	if params.JobName == "" {
		params.JobName = "delivery-autoconfirm"
	}
	if params.GraceAge <= 0 {
		params.GraceAge = 24 * time.Hour
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &deliveryConfirmJob{
		logg:      params.Logger,
		repo:      params.Repo,
		payouts:   params.Payouts,
		metrics:   params.Metrics,
		name:      params.JobName,
		graceAge:  params.GraceAge,
		batchSize: params.BatchSize,
		now:       time.Now,
	}, nil
}

type deliveryConfirmJob struct {
	logg      *logger.Logger
	repo      SweepRepository
	payouts   payoutScheduler
	metrics   *metrics.SweepMetrics
	name      string
	graceAge  time.Duration
	batchSize int
	now       func() time.Time
}

func (j *deliveryConfirmJob) Name() string { return j.name }

func (j *deliveryConfirmJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.graceAge)
	orders, err := j.repo.FindUnconfirmedDeliveries(ctx, cutoff, j.batchSize)
	if err != nil {
		return err
	}

	var errs error
	confirmed := 0
	for i := range orders {
		order := orders[i]
		if err := j.repo.MarkOrderCompleted(ctx, order.ID, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		order.Status = enums.OrderStatusCompleted
		order.CompletedAt = &now
		if _, err := j.payouts.ScheduleForOrder(ctx, &order); err != nil {
			// The payout-processing sweep picks up completed orders with no
			// payout row, so this is recoverable.
			errs = multierr.Append(errs, fmt.Errorf("schedule payout for order %s: %w", order.ID, err))
			continue
		}
		confirmed++
	}
	j.metrics.AddRows(j.name, "ok", confirmed)
	logCtx := j.logg.WithField(ctx, "count", confirmed)
	j.logg.Info(logCtx, "delivery auto-confirm sweep complete")
	return errs
}
