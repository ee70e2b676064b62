package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// garageFlagger records SLA penalties against a garage.
type garageFlagger interface {
	FlagGarage(ctx context.Context, orderID, garageID uuid.UUID, kind enums.PenaltyKind, note string) error
}

// SLABreachJobParams configure the preparation-SLA sweep.
type SLABreachJobParams struct {
	Logger    *logger.Logger
	Repo      SweepRepository
	Canceller orderCanceller
	Flagger   garageFlagger
	Metrics   *metrics.SweepMetrics
	SLA       time.Duration
	BatchSize int
}

// NewSLABreachJob builds the sweep that cancels orders a garage has left in
// preparing past the SLA. The customer is refunded in full and the garage is
// flagged for review.
func NewSLABreachJob(params SLABreachJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sweep repository required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("canceller required")
	}
	if params.Flagger == nil {
		return nil, fmt.Errorf("garage flagger required")
	}
	if params.SLA <= 0 {
		params.SLA = 72 * time.Hour
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &slaBreachJob{
		logg:      params.Logger,
		repo:      params.Repo,
		canceller: params.Canceller,
		flagger:   params.Flagger,
		metrics:   params.Metrics,
		sla:       params.SLA,
		batchSize: params.BatchSize,
		now:       time.Now,
	}, nil
}

type slaBreachJob struct {
	logg      *logger.Logger
	repo      SweepRepository
	canceller orderCanceller
	flagger   garageFlagger
	metrics   *metrics.SweepMetrics
	sla       time.Duration
	batchSize int
	now       func() time.Time
}

func (j *slaBreachJob) Name() string { return "sla-breach" }

func (j *slaBreachJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.sla)
	orders, err := j.repo.FindPreparingSince(ctx, cutoff, j.batchSize)
	if err != nil {
		return err
	}

	var errs error
	cancelled := 0
	for i := range orders {
		order := orders[i]
		reason := fmt.Sprintf("garage exceeded the %s preparation window", j.sla)
		_, err := j.canceller.Cancel(ctx, cancellation.Input{
			OrderID: order.ID,
			Actor:   enums.ActorOperator,
			Reason:  reason,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if err := j.flagger.FlagGarage(ctx, order.ID, order.GarageID, enums.PenaltySLABreach, reason); err != nil {
			// The cancel stands either way; the penalty can be re-raised by ops.
			errs = multierr.Append(errs, fmt.Errorf("flag garage for order %s: %w", order.ID, err))
		}
		cancelled++
	}
	j.metrics.AddRows(j.Name(), "ok", cancelled)
	logCtx := j.logg.WithField(ctx, "count", cancelled)
	j.logg.Info(logCtx, "preparation sla sweep complete")
	return errs
}
