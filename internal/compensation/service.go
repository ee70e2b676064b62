package compensation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/internal/notify"
	"github.com/partdash/partdash-backend/pkg/config"
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

// Service is the compensation review queue. When a buyer cancels
// mid-fulfillment, the garage's share of the retained fee is parked for a
// human decision instead of paid automatically; approving or denying is the
// only thing that moves it on.
type Service struct {
	txr       TxRunner
	repo      Repository
	notifier  notify.Transport
	logg      *logger.Logger
	shareRate decimal.Decimal
	delay     time.Duration
	now       func() time.Time
}

func NewService(txr TxRunner, repo Repository, cfg config.PayoutConfig, notifier notify.Transport, logg *logger.Logger) *Service {
	if notifier == nil {
		notifier = notify.NopTransport{}
	}
	return &Service{
		txr:       txr,
		repo:      repo,
		notifier:  notifier,
		logg:      logg,
		shareRate: money.ParseRate(cfg.SellerFeeShareRate, decimal.RequireFromString("0.5")),
		delay:     time.Duration(cfg.DelayDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Park moves the garage's potential share of the retained fee into review.
// If the order has no payout yet (the common case, since the order never
// completed) a zero-gross payout row is created to carry the claim.
func (s *Service) Park(ctx context.Context, order *models.Order, request *models.CancellationRequest) error {
	share := money.ApplyRate(request.FeeMinor, s.shareRate)
	if share <= 0 {
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	return s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payout, err := repo.FindPayoutByOrder(ctx, order.ID)
		if errors.HasCode(err, errors.CodeNotFound) {
			payout = &models.GaragePayout{
				ID:           uuid.New(),
				GarageID:     order.GarageID,
				OrderID:      order.ID,
				Status:       enums.PayoutStatusPendingCompensationReview,
				ScheduledFor: s.now().Add(s.delay),
			}
			payout.PotentialCompensationMinor = share
			payout.CompensationReason = &request.Reason
			if err := repo.CreatePayout(ctx, payout); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			if !payout.Status.IsCancellable() {
				// Confirmed or completed payouts are out of reach; the
				// reconciler already decided what happens to the money.
				return nil
			}
			payout.Status = enums.PayoutStatusPendingCompensationReview
			payout.PotentialCompensationMinor = share
			payout.CompensationReason = &request.Reason
			if err := repo.UpdatePayout(ctx, payout); err != nil {
				return err
			}
		}

		if err := repo.SetRequestCompensation(ctx, request.ID, enums.CompensationStatusPendingReview); err != nil {
			return err
		}
		request.CompensationStatus = enums.CompensationStatusPendingReview
		s.logg.Info(ctx, "compensation parked for review")
		return nil
	})
}

// ReviewItem pairs a parked payout with the cancellation that caused it.
type ReviewItem struct {
	Payout  models.GaragePayout         `json:"payout"`
	Request *models.CancellationRequest `json:"request,omitempty"`
}

// ListPending returns the open review queue, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]ReviewItem, error) {
	payouts, err := s.repo.ListPendingReview(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]ReviewItem, 0, len(payouts))
	for i := range payouts {
		item := ReviewItem{Payout: payouts[i]}
		if request, err := s.repo.LatestRequestForOrder(ctx, payouts[i].OrderID); err == nil {
			item.Request = request
		}
		items = append(items, item)
	}
	return items, nil
}

// Decide resolves one parked claim. Approval moves the share into the payout
// net and requeues it; denial zeroes the claim and flags the garage when a
// note says the claim was abusive.
func (s *Service) Decide(ctx context.Context, orderID uuid.UUID, approve bool, reviewerID uuid.UUID, note string) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	return s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payout, err := repo.FindPayoutByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if payout.Status != enums.PayoutStatusPendingCompensationReview {
			return errors.New(errors.CodeStateConflict, "payout is not awaiting compensation review")
		}

		request, err := repo.LatestRequestForOrder(ctx, orderID)
		if err != nil {
			return err
		}

		status := enums.CompensationStatusDenied
		if approve {
			status = enums.CompensationStatusApproved
			payout.NetMinor += payout.PotentialCompensationMinor
			payout.GrossMinor += payout.PotentialCompensationMinor
		} else if note != "" {
			penalty := &models.GaragePenalty{
				GarageID: payout.GarageID,
				OrderID:  orderID,
				Kind:     enums.PenaltyCompensationDenied,
				Note:     &note,
			}
			if err := repo.CreatePenalty(ctx, penalty); err != nil {
				return err
			}
		}

		payout.PotentialCompensationMinor = 0
		if payout.NetMinor > 0 {
			payout.Status = enums.PayoutStatusPending
		} else {
			payout.Status = enums.PayoutStatusCancelled
		}
		if err := repo.UpdatePayout(ctx, payout); err != nil {
			return err
		}
		if err := repo.SetRequestCompensation(ctx, request.ID, status); err != nil {
			return err
		}

		s.logg.Info(ctx, "compensation review decided: "+status.String())
		s.publish(ctx, payout.GarageID, map[string]any{
			"order_id":    orderID,
			"decision":    status,
			"net_minor":   payout.NetMinor,
			"reviewed_by": reviewerID,
		})
		return nil
	})
}

func (s *Service) publish(ctx context.Context, garageID uuid.UUID, payload map[string]any) {
	if err := s.notifier.Publish(ctx, notify.GarageChannel(garageID), notify.EventCompensationReviewed, payload); err != nil {
		s.logg.Warn(ctx, "notification publish failed: compensation review")
	}
}
