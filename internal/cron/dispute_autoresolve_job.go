package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// disputeResolver closes stale unanswered disputes.
type disputeResolver interface {
	AutoResolve(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// DisputeAutoResolveJobParams configure the dispute response-window sweep.
type DisputeAutoResolveJobParams struct {
	Logger         *logger.Logger
	Disputes       disputeResolver
	Metrics        *metrics.SweepMetrics
	ResponseWindow time.Duration
	BatchSize      int
}

// NewDisputeAutoResolveJob builds the sweep that resolves disputes the garage
// never answered inside the response window. Silence resolves in the buyer's
// favor.
func NewDisputeAutoResolveJob(params DisputeAutoResolveJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Disputes == nil {
		return nil, fmt.Errorf("dispute resolver required")
	}
	if params.ResponseWindow <= 0 {
		params.ResponseWindow = 48 * time.Hour
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	return &disputeAutoResolveJob{
		logg:      params.Logger,
		disputes:  params.Disputes,
		metrics:   params.Metrics,
		window:    params.ResponseWindow,
		batchSize: params.BatchSize,
		now:       time.Now,
	}, nil
}

type disputeAutoResolveJob struct {
	logg      *logger.Logger
	disputes  disputeResolver
	metrics   *metrics.SweepMetrics
	window    time.Duration
	batchSize int
	now       func() time.Time
}

func (j *disputeAutoResolveJob) Name() string { return "dispute-autoresolve" }

func (j *disputeAutoResolveJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	resolved, err := j.disputes.AutoResolve(ctx, cutoff, j.batchSize)
	j.metrics.AddRows(j.Name(), "ok", resolved)
	logCtx := j.logg.WithField(ctx, "count", resolved)
	j.logg.Info(logCtx, "dispute auto-resolve sweep complete")
	return err
}
