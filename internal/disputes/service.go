package disputes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/internal/notify"
	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/logger"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Canceller is the operator cancellation path a refund-favoring resolution
// routes through. Implemented by the cancellation service.
type Canceller interface {
	Cancel(ctx context.Context, input cancellation.Input) (*cancellation.Result, error)
}

// PayoutHolder parks and releases payouts while disputes are in flight.
// Implemented by the payouts service.
type PayoutHolder interface {
	Hold(ctx context.Context, orderID uuid.UUID, reason string) error
	ReleaseHold(ctx context.Context, orderID uuid.UUID) error
}

// Service manages delivery disputes. An open dispute freezes the order's
// payout; resolving in the buyer's favor routes into the operator
// cancellation path, which refunds in full and, for an already-confirmed
// payout, produces a reversal.
type Service struct {
	txr       TxRunner
	repo      Repository
	canceller Canceller
	payouts   PayoutHolder
	notifier  notify.Transport
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(txr TxRunner, repo Repository, canceller Canceller, payouts PayoutHolder, notifier notify.Transport, logg *logger.Logger) *Service {
	if notifier == nil {
		notifier = notify.NopTransport{}
	}
	return &Service{
		txr:       txr,
		repo:      repo,
		canceller: canceller,
		payouts:   payouts,
		notifier:  notifier,
		logg:      logg,
		now:       time.Now,
	}
}

// Open raises a dispute on a delivered order.
func (s *Service) Open(ctx context.Context, orderID, openedBy uuid.UUID, reason string) (*models.Dispute, error) {
	if reason == "" {
		return nil, errors.New(errors.CodeValidation, "dispute reason is required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var dispute *models.Dispute
	err := s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != openedBy {
			return errors.New(errors.CodeForbidden, "not the order's customer")
		}
		if order.Status != enums.OrderStatusDelivered {
			return errors.New(errors.CodeStateConflict, "only delivered orders can be disputed")
		}
		if _, err := repo.FindOpenByOrder(ctx, orderID); err == nil {
			return errors.New(errors.CodeConflict, "order already has an open dispute")
		} else if !errors.HasCode(err, errors.CodeNotFound) {
			return err
		}

		dispute = &models.Dispute{
			ID:       uuid.New(),
			OrderID:  orderID,
			OpenedBy: openedBy,
			Reason:   reason,
			Status:   enums.DisputeStatusOpen,
		}
		if err := repo.Create(ctx, dispute); err != nil {
			return err
		}
		return repo.SetOrderStatus(ctx, orderID, enums.OrderStatusDisputed)
	})
	if err != nil {
		return nil, err
	}

	if err := s.payouts.Hold(ctx, orderID, "open dispute"); err != nil {
		s.logg.Error(ctx, "payout hold failed for dispute", err)
	}
	s.publishDispute(ctx, dispute, notify.EventDisputeOpened)
	return dispute, nil
}

// MarkGarageResponded records that the garage answered inside the response
// window, which stops the auto-resolve sweep.
func (s *Service) MarkGarageResponded(ctx context.Context, disputeID uuid.UUID) error {
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		return err
	}
	if dispute.Status != enums.DisputeStatusOpen {
		return errors.New(errors.CodeStateConflict, "dispute is not open")
	}
	now := s.now()
	dispute.GarageRespondedAt = &now
	return s.repo.Update(ctx, dispute)
}

// Resolve closes a dispute. favorBuyer routes through the operator
// cancellation path (full refund, payout reconciliation included); otherwise
// the held payout is released.
func (s *Service) Resolve(ctx context.Context, disputeID, resolvedBy uuid.UUID, favorBuyer bool, resolution string) error {
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		return err
	}
	return s.resolve(ctx, dispute, resolvedBy, favorBuyer, resolution, false)
}

func (s *Service) resolve(ctx context.Context, dispute *models.Dispute, resolvedBy uuid.UUID, favorBuyer bool, resolution string, auto bool) error {
	ctx = s.logg.WithOrderID(ctx, dispute.OrderID.String())
	if dispute.Status != enums.DisputeStatusOpen {
		return errors.New(errors.CodeStateConflict, "dispute already resolved")
	}

	status := enums.DisputeStatusResolvedRejected
	if favorBuyer {
		status = enums.DisputeStatusResolvedRefund
	}
	if auto {
		status = enums.DisputeStatusAutoResolved
	}

	now := s.now()
	dispute.Status = status
	dispute.Resolution = &resolution
	dispute.ResolvedAt = &now
	if resolvedBy != uuid.Nil {
		dispute.ResolvedBy = &resolvedBy
	}
	if err := s.repo.Update(ctx, dispute); err != nil {
		return err
	}

	if favorBuyer {
		_, err := s.canceller.Cancel(ctx, cancellation.Input{
			OrderID: dispute.OrderID,
			ActorID: resolvedBy,
			Actor:   enums.ActorOperator,
			Reason:  "dispute resolved in buyer's favor: " + resolution,
		})
		if err != nil {
			return err
		}
	} else {
		if err := s.payouts.ReleaseHold(ctx, dispute.OrderID); err != nil {
			s.logg.Error(ctx, "payout release failed after dispute rejection", err)
		}
	}

	s.logg.Info(ctx, "dispute resolved: "+status.String())
	s.publishDispute(ctx, dispute, notify.EventDisputeResolved)
	return nil
}

// AutoResolve closes stale disputes in the buyer's favor. Per-row failures
// accumulate; the batch continues.
func (s *Service) AutoResolve(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := s.repo.FindStale(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	var errs error
	for i := range stale {
		dispute := stale[i]
		if err := s.resolve(ctx, &dispute, uuid.Nil, true, "no garage response within the window", true); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dispute %s: %w", dispute.ID, err))
		}
	}
	return len(stale), errs
}

func (s *Service) publishDispute(ctx context.Context, dispute *models.Dispute, event string) {
	payload := map[string]any{
		"dispute_id": dispute.ID,
		"order_id":   dispute.OrderID,
		"status":     dispute.Status,
		"reason":     dispute.Reason,
	}
	for _, channel := range []string{notify.CustomerChannel(dispute.OpenedBy), notify.OpsChannel} {
		if err := s.notifier.Publish(ctx, channel, event, payload); err != nil {
			s.logg.Warn(ctx, "notification publish failed: "+event)
		}
	}
}
