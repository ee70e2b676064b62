package refunds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/internal/notify"
	"github.com/partdash/partdash-backend/pkg/db"
	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/gateway"
	"github.com/partdash/partdash-backend/pkg/logger"
)

const (
	gatewayMaxRetries     = 2
	gatewayInitialBackoff = 500 * time.Millisecond
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway is the slice of the payment gateway this service needs. The
// concrete Square client lives in pkg/gateway.
type Gateway interface {
	IssueRefund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error)
}

// Service owns the local Refund state machine: a row is created pending
// before the gateway call, flipped to processing, then completed or failed on
// the response. The idempotency key is derived from (orderID, refundID) so a
// crash between gateway success and local commit is safe to replay.
type Service struct {
	txr      TxRunner
	repo     Repository
	gateway  Gateway
	notifier notify.Transport
	logg     *logger.Logger
}

func NewService(txr TxRunner, repo Repository, gw Gateway, notifier notify.Transport, logg *logger.Logger) *Service {
	if notifier == nil {
		notifier = notify.NopTransport{}
	}
	return &Service{txr: txr, repo: repo, gateway: gw, notifier: notifier, logg: logg}
}

// IdempotencyKey is stable across retries of the same refund record.
func IdempotencyKey(orderID, refundID uuid.UUID) string {
	return fmt.Sprintf("refund-%s-%s", orderID, refundID)
}

// Execute issues the refund a cancellation computed. Idempotent per order: a
// refund already completed is a no-op, one already pending/processing is
// driven forward with the same key. A failed refund is left for manual
// remediation and never retried here.
func (s *Service) Execute(ctx context.Context, order *models.Order, request *models.CancellationRequest) error {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	var refund *models.Refund
	err := s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindActiveByOrder(ctx, order.ID)
		if err == nil {
			refund = existing
			return nil
		}
		if !errors.HasCode(err, errors.CodeNotFound) {
			return err
		}

		refund = &models.Refund{
			ID:                       uuid.New(),
			OrderID:                  order.ID,
			OriginalMinor:            order.TotalMinor,
			RefundMinor:              request.RefundMinor,
			FeeRetainedMinor:         request.FeeMinor,
			DeliveryFeeRetainedMinor: request.DeliveryFeeRetainedMinor,
			Status:                   enums.RefundStatusPending,
		}
		if createErr := repo.Create(ctx, refund); createErr != nil {
			// A concurrent attempt won the partial unique index race; adopt
			// its row instead.
			if db.IsUniqueViolation(createErr, "ux_refunds_order_active") {
				refund, err = repo.FindActiveByOrder(ctx, order.ID)
				return err
			}
			return createErr
		}
		return nil
	})
	if err != nil {
		return err
	}

	if refund.Status == enums.RefundStatusCompleted {
		s.logg.Info(ctx, "refund already completed, nothing to do")
		return nil
	}
	return s.process(ctx, refund, order)
}

// process drives one pending/processing refund row through the gateway.
func (s *Service) process(ctx context.Context, refund *models.Refund, order *models.Order) error {
	if order.PaymentRef == nil || *order.PaymentRef == "" {
		return s.fail(ctx, refund, order, "order has no payment reference")
	}

	refund.Status = enums.RefundStatusProcessing
	if err := s.repo.Update(ctx, refund); err != nil {
		return err
	}

	params := gateway.RefundParams{
		PaymentRef:     *order.PaymentRef,
		AmountMinor:    refund.RefundMinor,
		Currency:       order.Currency,
		IdempotencyKey: IdempotencyKey(order.ID, refund.ID),
		Reason:         "order cancellation",
	}

	var result *gateway.RefundResult
	backoff := retry.WithMaxRetries(gatewayMaxRetries, retry.NewExponential(gatewayInitialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		result, callErr = s.gateway.IssueRefund(ctx, params)
		if callErr != nil && errors.HasCode(callErr, errors.CodeDependency) {
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return s.fail(ctx, refund, order, err.Error())
	}
	if rejectedStatus(result.Status) {
		return s.fail(ctx, refund, order, "gateway returned status "+result.Status)
	}

	refund.Status = enums.RefundStatusCompleted
	refund.ExternalRef = &result.ExternalID
	err = s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, refund); err != nil {
			return err
		}
		return repo.MarkOrderRefunded(ctx, order.ID)
	})
	if err != nil {
		return err
	}

	s.logg.Info(ctx, "refund completed")
	s.publish(ctx, order, notify.EventRefundCompleted, map[string]any{
		"order_id":     order.ID,
		"refund_id":    refund.ID,
		"refund_minor": refund.RefundMinor,
		"external_ref": result.ExternalID,
	})
	return nil
}

// fail parks the refund for manual remediation. The cancellation itself
// stands; only the money transfer is outstanding.
func (s *Service) fail(ctx context.Context, refund *models.Refund, order *models.Order, reason string) error {
	refund.Status = enums.RefundStatusFailed
	refund.FailureReason = &reason
	if err := s.repo.Update(ctx, refund); err != nil {
		return err
	}
	s.logg.Warn(ctx, "refund failed: "+reason)
	s.publish(ctx, order, notify.EventRefundFailed, map[string]any{
		"order_id":  order.ID,
		"refund_id": refund.ID,
		"reason":    reason,
	})
	return errors.New(errors.CodeDependency, "refund failed: "+reason)
}

// RetryStuck re-drives refunds stranded in pending or processing by a crash
// around the gateway call. The idempotency key makes the replay safe even
// when the gateway already honored the original request. Returns how many
// rows were attempted; per-row failures accumulate instead of aborting the
// batch.
func (s *Service) RetryStuck(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stuck, err := s.repo.FindStuck(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	var errs error
	for i := range stuck {
		refund := &stuck[i]
		order, err := s.repo.FindOrder(ctx, refund.OrderID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("refund %s: %w", refund.ID, err))
			continue
		}
		if err := s.process(ctx, refund, order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("refund %s: %w", refund.ID, err))
		}
	}
	return len(stuck), errs
}

func (s *Service) publish(ctx context.Context, order *models.Order, event string, payload map[string]any) {
	channels := []string{notify.CustomerChannel(order.CustomerID), notify.OpsChannel}
	for _, channel := range channels {
		if err := s.notifier.Publish(ctx, channel, event, payload); err != nil {
			s.logg.Warn(ctx, "notification publish failed: "+channel)
		}
	}
}

func rejectedStatus(status string) bool {
	switch strings.ToUpper(status) {
	case "REJECTED", "FAILED":
		return true
	default:
		return false
	}
}
