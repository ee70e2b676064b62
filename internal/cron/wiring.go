package cron

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/internal/disputes"
	"github.com/partdash/partdash-backend/internal/payouts"
	"github.com/partdash/partdash-backend/internal/refunds"
	"github.com/partdash/partdash-backend/pkg/config"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// Deps carries the wired services the sweep registry needs. Both the cron
// worker and the API's manual trigger endpoint build the same registry from
// the same deps, so a manual run behaves exactly like a scheduled one.
type Deps struct {
	Logger        *logger.Logger
	DB            *gorm.DB
	Cancellations *cancellation.Service
	Payouts       *payouts.Service
	Disputes      *disputes.Service
	Refunds       *refunds.Service
	Metrics       *metrics.SweepMetrics
	Sweep         config.SweepConfig
	Payout        config.PayoutConfig
}

// BuildRegistry assembles every sweep job in its production order.
func BuildRegistry(deps Deps) (*Registry, error) {
	repo := NewSweepRepository(deps.DB)

	orphan, err := NewOrphanOrdersJob(OrphanOrdersJobParams{
		Logger:    deps.Logger,
		Repo:      repo,
		Canceller: deps.Cancellations,
		Metrics:   deps.Metrics,
		MaxAge:    deps.Sweep.OrphanOrderAge,
		BatchSize: deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("orphan orders job: %w", err)
	}

	sla, err := NewSLABreachJob(SLABreachJobParams{
		Logger:    deps.Logger,
		Repo:      repo,
		Canceller: deps.Cancellations,
		Flagger:   deps.Cancellations,
		Metrics:   deps.Metrics,
		SLA:       deps.Sweep.PreparingSLA,
		BatchSize: deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("sla breach job: %w", err)
	}

	autoconfirm, err := NewDeliveryConfirmJob(DeliveryConfirmJobParams{
		Logger:    deps.Logger,
		Repo:      repo,
		Payouts:   deps.Payouts,
		Metrics:   deps.Metrics,
		JobName:   "delivery-autoconfirm",
		GraceAge:  deps.Sweep.DeliveryConfirmAge,
		BatchSize: deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("delivery autoconfirm job: %w", err)
	}

	legacyConfirm, err := NewDeliveryConfirmJob(DeliveryConfirmJobParams{
		Logger:    deps.Logger,
		Repo:      repo,
		Payouts:   deps.Payouts,
		Metrics:   deps.Metrics,
		JobName:   "delivery-autoconfirm-legacy",
		GraceAge:  deps.Sweep.DeliveryConfirmLegacyAge,
		BatchSize: deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("legacy delivery autoconfirm job: %w", err)
	}

	payoutProcessing, err := NewPayoutProcessingJob(PayoutProcessingJobParams{
		Logger:    deps.Logger,
		Repo:      repo,
		Payouts:   deps.Payouts,
		Processor: deps.Payouts,
		Metrics:   deps.Metrics,
		BatchSize: deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("payout processing job: %w", err)
	}

	payoutConfirm, err := NewPayoutConfirmJob(PayoutConfirmJobParams{
		Logger:       deps.Logger,
		Payouts:      deps.Payouts,
		Metrics:      deps.Metrics,
		ConfirmAfter: time.Duration(deps.Payout.ConfirmAfterHours) * time.Hour,
		BatchSize:    deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("payout confirm job: %w", err)
	}

	disputeResolve, err := NewDisputeAutoResolveJob(DisputeAutoResolveJobParams{
		Logger:         deps.Logger,
		Disputes:       deps.Disputes,
		Metrics:        deps.Metrics,
		ResponseWindow: deps.Sweep.DisputeResponseWindow,
		BatchSize:      deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("dispute auto-resolve job: %w", err)
	}

	stuckRefunds, err := NewStuckRefundsJob(StuckRefundsJobParams{
		Logger:    deps.Logger,
		Refunds:   deps.Refunds,
		Metrics:   deps.Metrics,
		StuckAge:  deps.Sweep.StuckRefundAge,
		BatchSize: deps.Sweep.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("stuck refunds job: %w", err)
	}

	return NewRegistry(
		orphan,
		sla,
		autoconfirm,
		legacyConfirm,
		payoutProcessing,
		payoutConfirm,
		disputeResolve,
		stuckRefunds,
	), nil
}
