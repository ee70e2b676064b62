package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/internal/notify"
	"github.com/partdash/partdash-backend/pkg/config"
	"github.com/partdash/partdash-backend/pkg/db"
	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/money"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the garage payout lifecycle: scheduling after completion,
// reconciliation against refunds, dispute holds, and reversal netting. A
// payout that reached confirmed is an immutable financial fact; anything owed
// back afterwards travels as a PayoutReversal.
type Service struct {
	txr            TxRunner
	repo           Repository
	notifier       notify.Transport
	logg           *logger.Logger
	delay          time.Duration
	commissionRate decimal.Decimal
	now            func() time.Time
}

func NewService(txr TxRunner, repo Repository, cfg config.PayoutConfig, notifier notify.Transport, logg *logger.Logger) *Service {
	if notifier == nil {
		notifier = notify.NopTransport{}
	}
	return &Service{
		txr:            txr,
		repo:           repo,
		notifier:       notifier,
		logg:           logg,
		delay:          time.Duration(cfg.DelayDays) * 24 * time.Hour,
		commissionRate: money.ParseRate(cfg.CommissionRate, decimal.RequireFromString("0.15")),
		now:            time.Now,
	}
}

// ScheduleForOrder creates the payout owed for a completed order. Idempotent:
// the unique order index makes a second call a no-op.
func (s *Service) ScheduleForOrder(ctx context.Context, order *models.Order) (*models.GaragePayout, error) {
	gross := order.TotalMinor
	commission := money.ApplyRate(gross, s.commissionRate)
	completedAt := s.now()
	if order.CompletedAt != nil {
		completedAt = *order.CompletedAt
	}

	payout := &models.GaragePayout{
		ID:              uuid.New(),
		GarageID:        order.GarageID,
		OrderID:         order.ID,
		GrossMinor:      gross,
		CommissionMinor: commission,
		NetMinor:        gross - commission,
		Status:          enums.PayoutStatusPending,
		ScheduledFor:    completedAt.Add(s.delay),
	}
	if err := s.repo.Create(ctx, payout); err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.repo.FindByOrder(ctx, order.ID)
		}
		return nil, err
	}
	return payout, nil
}

// ReconcileForRefund applies the decision table run whenever a refund is
// approved: no payout → nothing; a cancellable payout → cancelled; a
// confirmed payout → reversal for the refunded amount, original untouched.
func (s *Service) ReconcileForRefund(ctx context.Context, orderID uuid.UUID, refundMinor int64, reason string) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	return s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payout, err := repo.FindByOrder(ctx, orderID)
		if err != nil {
			if errors.HasCode(err, errors.CodeNotFound) {
				return nil
			}
			return err
		}

		switch {
		case payout.Status == enums.PayoutStatusCancelled:
			return nil
		case payout.Status.IsCancellable():
			payout.Status = enums.PayoutStatusCancelled
			if err := repo.Update(ctx, payout); err != nil {
				return err
			}
			s.logg.Info(ctx, "payout cancelled for refund")
			return nil
		case payout.Status == enums.PayoutStatusConfirmed:
			reversal := &models.PayoutReversal{
				ID:               uuid.New(),
				GarageID:         payout.GarageID,
				OriginalPayoutID: payout.ID,
				OrderID:          orderID,
				AmountMinor:      refundMinor,
				RemainingMinor:   refundMinor,
				Status:           enums.ReversalStatusPending,
				Reason:           reason,
			}
			if err := repo.CreateReversal(ctx, reversal); err != nil {
				return err
			}
			s.logg.Info(ctx, "payout reversal created for confirmed payout")
			s.publish(ctx, payout.GarageID, notify.EventPayoutReversed, map[string]any{
				"order_id":     orderID,
				"payout_id":    payout.ID,
				"amount_minor": refundMinor,
			})
			return nil
		default:
			// completed but unconfirmed: refuse to leave the money out while
			// a refund exists; claw back via reversal as well.
			reversal := &models.PayoutReversal{
				ID:               uuid.New(),
				GarageID:         payout.GarageID,
				OriginalPayoutID: payout.ID,
				OrderID:          orderID,
				AmountMinor:      refundMinor,
				RemainingMinor:   refundMinor,
				Status:           enums.ReversalStatusPending,
				Reason:           reason,
			}
			return repo.CreateReversal(ctx, reversal)
		}
	})
}

// Hold parks a payout while a dispute is open.
func (s *Service) Hold(ctx context.Context, orderID uuid.UUID, reason string) error {
	return s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := repo.FindByOrder(ctx, orderID)
		if err != nil {
			if errors.HasCode(err, errors.CodeNotFound) {
				return nil
			}
			return err
		}
		switch payout.Status {
		case enums.PayoutStatusPending, enums.PayoutStatusProcessing:
			payout.Status = enums.PayoutStatusHeld
			payout.HeldReason = &reason
			if err := repo.Update(ctx, payout); err != nil {
				return err
			}
			s.publish(ctx, payout.GarageID, notify.EventPayoutHeld, map[string]any{
				"order_id": orderID,
				"reason":   reason,
			})
		}
		return nil
	})
}

// ReleaseHold returns a held payout to the pending queue, used when a dispute
// resolves without a refund.
func (s *Service) ReleaseHold(ctx context.Context, orderID uuid.UUID) error {
	return s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := repo.FindByOrder(ctx, orderID)
		if err != nil {
			if errors.HasCode(err, errors.CodeNotFound) {
				return nil
			}
			return err
		}
		if payout.Status != enums.PayoutStatusHeld {
			return nil
		}
		payout.Status = enums.PayoutStatusPending
		payout.HeldReason = nil
		if err := repo.Update(ctx, payout); err != nil {
			return err
		}
		s.publish(ctx, payout.GarageID, notify.EventPayoutReleased, map[string]any{
			"order_id": orderID,
		})
		return nil
	})
}

// ProcessDue runs one payout cycle over payouts whose scheduled date passed:
// holds disputed orders, cancels refunded ones, nets pending reversals
// against the net amount, then marks the remainder completed. Per-row
// failures accumulate; the batch continues.
func (s *Service) ProcessDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.FindDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	var errs error
	for i := range due {
		payout := due[i]
		if err := s.processOne(ctx, &payout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payout %s: %w", payout.ID, err))
		}
	}
	return len(due), errs
}

func (s *Service) processOne(ctx context.Context, payout *models.GaragePayout) error {
	return s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		disputed, err := repo.HasOpenDispute(ctx, payout.OrderID)
		if err != nil {
			return err
		}
		if disputed {
			reason := "open dispute"
			payout.Status = enums.PayoutStatusHeld
			payout.HeldReason = &reason
			return repo.Update(ctx, payout)
		}

		refunded, err := repo.HasActiveRefund(ctx, payout.OrderID)
		if err != nil {
			return err
		}
		if refunded {
			// Policy, not an error: a refunded order never pays out.
			payout.Status = enums.PayoutStatusCancelled
			return repo.Update(ctx, payout)
		}

		net, err := s.netReversals(ctx, repo, payout)
		if err != nil {
			return err
		}
		now := s.now()
		payout.NetMinor = net
		payout.Status = enums.PayoutStatusCompleted
		payout.CompletedAt = &now
		return repo.Update(ctx, payout)
	})
}

// netReversals consumes the garage's pending reversals against this payout's
// net amount, oldest first. A reversal larger than the remaining net is
// partially consumed and stays pending for the next cycle.
func (s *Service) netReversals(ctx context.Context, repo Repository, payout *models.GaragePayout) (int64, error) {
	reversals, err := repo.PendingReversalsForGarage(ctx, payout.GarageID)
	if err != nil {
		return 0, err
	}

	net := payout.NetMinor
	now := s.now()
	for i := range reversals {
		if net <= 0 {
			break
		}
		reversal := &reversals[i]
		consumed := reversal.RemainingMinor
		if consumed > net {
			consumed = net
		}
		net -= consumed
		reversal.RemainingMinor -= consumed
		if reversal.RemainingMinor == 0 {
			reversal.Status = enums.ReversalStatusApplied
			appliedID := payout.ID
			reversal.AppliedPayoutID = &appliedID
			reversal.AppliedAt = &now
		}
		if err := repo.UpdateReversal(ctx, reversal); err != nil {
			return 0, err
		}
	}
	return net, nil
}

// ConfirmAged advances payouts past the confirmation window one step per
// cycle: completed → awaiting_confirmation → confirmed. The intermediate
// state buys one extra sweep interval for a late refund or dispute to cancel
// the payout; once confirmed it is immutable.
func (s *Service) ConfirmAged(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	payouts, err := s.repo.FindConfirmable(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	var errs error
	now := s.now()
	for i := range payouts {
		payout := payouts[i]
		switch payout.Status {
		case enums.PayoutStatusCompleted:
			payout.Status = enums.PayoutStatusAwaitingConfirmation
		case enums.PayoutStatusAwaitingConfirmation:
			payout.Status = enums.PayoutStatusConfirmed
			payout.ConfirmedAt = &now
		default:
			continue
		}
		if err := s.repo.Update(ctx, &payout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payout %s: %w", payout.ID, err))
		}
	}
	return len(payouts), errs
}

func (s *Service) publish(ctx context.Context, garageID uuid.UUID, event string, payload map[string]any) {
	if err := s.notifier.Publish(ctx, notify.GarageChannel(garageID), event, payload); err != nil {
		s.logg.Warn(ctx, "notification publish failed: "+event)
	}
}
