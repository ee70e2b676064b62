package cancellation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/internal/notify"
	"github.com/partdash/partdash-backend/pkg/config"
	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/metrics"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RefundExecutor pushes an approved refund through the payment gateway.
// Implemented by the refunds service.
type RefundExecutor interface {
	Execute(ctx context.Context, order *models.Order, request *models.CancellationRequest) error
}

// PayoutReconciler reacts to an approved refund: cancel, hold, or reverse the
// order's payout. Implemented by the payouts service.
type PayoutReconciler interface {
	ReconcileForRefund(ctx context.Context, orderID uuid.UUID, refundMinor int64, reason string) error
}

// CompensationParker parks the garage's share of a retained fee for manual
// review. Implemented by the compensation service.
type CompensationParker interface {
	Park(ctx context.Context, order *models.Order, request *models.CancellationRequest) error
}

// Result is the outcome of one cancellation attempt. Replayed is true when
// the operator path returned a previously committed outcome instead of
// cancelling again.
type Result struct {
	Order    *models.Order
	Request  *models.CancellationRequest
	Replayed bool
}

// Service orchestrates cancellations for all four actor types. The financial
// transaction is scoped tightly around the row lock; gateway calls and
// notifications run after commit so external latency never holds a lock.
type Service struct {
	txr          TxRunner
	repo         Repository
	classifier   *Classifier
	policy       *PolicyAdjuster
	refunds      RefundExecutor
	payouts      PayoutReconciler
	compensation CompensationParker
	notifier     notify.Transport
	logg         *logger.Logger
	metrics      *metrics.CancellationMetrics
	now          func() time.Time
}

// Params wires the service.
type Params struct {
	TxRunner     TxRunner
	Repo         Repository
	Config       config.CancellationConfig
	Refunds      RefundExecutor
	Payouts      PayoutReconciler
	Compensation CompensationParker
	Notifier     notify.Transport
	Logger       *logger.Logger
	Metrics      *metrics.CancellationMetrics
}

func NewService(p Params) *Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notify.NopTransport{}
	}
	return &Service{
		txr:          p.TxRunner,
		repo:         p.Repo,
		classifier:   NewClassifier(p.Config.StrictStages),
		policy:       NewPolicyAdjuster(p.Config),
		refunds:      p.Refunds,
		payouts:      p.Payouts,
		compensation: p.Compensation,
		notifier:     notifier,
		logg:         p.Logger,
		metrics:      p.Metrics,
		now:          time.Now,
	}
}

func strategyFor(actor enums.ActorType) (Strategy, error) {
	switch actor {
	case enums.ActorCustomer:
		return buyerStrategy{}, nil
	case enums.ActorGarage:
		return garageStrategy{}, nil
	case enums.ActorCourier:
		return courierStrategy{}, nil
	case enums.ActorOperator:
		return operatorStrategy{}, nil
	default:
		return nil, errors.New(errors.CodeValidation, "unknown actor type")
	}
}

// Cancel runs the full cancellation workflow for one order.
func (s *Service) Cancel(ctx context.Context, input Input) (*Result, error) {
	strategy, err := strategyFor(input.Actor)
	if err != nil {
		return nil, err
	}
	if input.Reason == "" {
		return nil, errors.New(errors.CodeValidation, "cancellation reason is required")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	ctx = s.logg.WithActor(ctx, input.Actor.String())

	var (
		result     Result
		wasPaid    bool
		courierID  *uuid.UUID
		fromStatus enums.OrderStatus
	)
	err = s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}

		if order.Status.IsTerminal() {
			return s.handleTerminal(ctx, repo, strategy, order, &result)
		}

		if err := strategy.Authorize(order, input); err != nil {
			return err
		}
		if !strategy.AllowsStatus(order.Status) {
			return errors.New(errors.CodeStateConflict,
				"order status "+order.Status.String()+" is not cancellable by "+input.Actor.String())
		}

		stage, err := s.classifier.Classify(order.Status)
		if err != nil {
			return err
		}
		quote, fault, err := strategy.Price(order, input, stage)
		if err != nil {
			return err
		}
		if !quote.Cancellable {
			return errors.New(errors.CodeStateConflict,
				"stage "+stage.String()+" is not cancellable")
		}

		var prior int64
		if input.Actor == enums.ActorCustomer {
			prior, err = repo.CountCustomerCancellations(ctx, order.CustomerID)
			if err != nil {
				return err
			}
		}
		quote = s.policy.Adjust(quote, input.Actor, order.TotalMinor, prior)

		now := s.now()
		wasPaid = order.PaymentStatus == enums.PaymentStatusPaid
		courierID = order.CourierID
		fromStatus = order.Status

		order.Status = strategy.CancelledStatus()
		order.CancelledAt = &now
		strategy.MutateOrder(order, input)
		if err := repo.SaveOrder(ctx, order); err != nil {
			return err
		}

		request := &models.CancellationRequest{
			ID:                       uuid.New(),
			OrderID:                  order.ID,
			RequestedBy:              input.ActorID,
			RequestedByType:          input.Actor,
			Reason:                   input.Reason,
			ReasonCode:               input.ReasonCode,
			Stage:                    stage,
			FaultParty:               fault,
			MinutesSinceOrder:        int64(now.Sub(order.CreatedAt).Minutes()),
			FeeRate:                  quote.Rate.StringFixed(4),
			FeeMinor:                 quote.FeeMinor,
			DeliveryFeeRetainedMinor: quote.DeliveryRetainedMinor,
			RefundMinor:              quote.RefundMinor,
			FirstFreeApplied:         quote.FirstFreeApplied,
			CompensationStatus:       enums.CompensationStatusNone,
		}
		if err := repo.CreateRequest(ctx, request); err != nil {
			return err
		}

		history := &models.OrderStatusHistory{
			OrderID:       order.ID,
			FromStatus:    fromStatus,
			ToStatus:      order.Status,
			ChangedByType: input.Actor,
			Note:          &input.Reason,
		}
		if input.ActorID != uuid.Nil {
			actorID := input.ActorID
			history.ChangedBy = &actorID
		}
		if err := repo.CreateStatusHistory(ctx, history); err != nil {
			return err
		}

		if err := strategy.SideEffects(ctx, repo, order, input); err != nil {
			return err
		}

		result = Result{Order: order, Request: request}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		s.logg.Info(ctx, "cancellation replayed prior outcome")
		return &result, nil
	}

	s.finalize(ctx, &result, input, wasPaid, courierID)
	return &result, nil
}

// handleTerminal resolves a cancellation attempt against an order that is
// already cancelled, refunded, or completed. The operator path replays the
// committed outcome idempotently; every other actor gets a hard error so a
// retried client request cannot silently ride on someone else's cancellation.
func (s *Service) handleTerminal(ctx context.Context, repo Repository, strategy Strategy, order *models.Order, result *Result) error {
	if strategy.Actor() != enums.ActorOperator {
		return errors.New(errors.CodeAlreadyTerminal,
			"order already in terminal status "+order.Status.String())
	}
	request, err := repo.LatestRequestForOrder(ctx, order.ID)
	if err != nil && !errors.HasCode(err, errors.CodeNotFound) {
		return err
	}
	*result = Result{Order: order, Request: request, Replayed: true}
	return nil
}

// finalize runs the post-commit side of the workflow. Nothing here can undo
// the committed cancellation; every failure is logged and left for the
// sweeps or manual remediation.
func (s *Service) finalize(ctx context.Context, result *Result, input Input, wasPaid bool, courierID *uuid.UUID) {
	order, request := result.Order, result.Request

	if wasPaid && request.RefundMinor > 0 && s.refunds != nil {
		if err := s.refunds.Execute(ctx, order, request); err != nil {
			s.logg.Error(ctx, "refund execution failed, leaving for remediation", err)
		}
	}
	if wasPaid && s.payouts != nil {
		if err := s.payouts.ReconcileForRefund(ctx, order.ID, request.RefundMinor, input.Reason); err != nil {
			s.logg.Error(ctx, "payout reconciliation failed", err)
		}
	}
	if s.compensation != nil && input.Actor == enums.ActorCustomer && request.FeeMinor > 0 &&
		(request.Stage == enums.StageDuringPreparation || request.Stage == enums.StageInDelivery) {
		if err := s.compensation.Park(ctx, order, request); err != nil {
			s.logg.Error(ctx, "compensation review parking failed", err)
		}
	}

	s.notifyParties(ctx, order, request, courierID)
	s.metrics.Record(input.Actor.String(), request.Stage.String(), request.FeeMinor)
}

func (s *Service) notifyParties(ctx context.Context, order *models.Order, request *models.CancellationRequest, courierID *uuid.UUID) {
	payload := map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"stage":        request.Stage,
		"fee_minor":    request.FeeMinor,
		"refund_minor": request.RefundMinor,
		"reason":       request.Reason,
	}
	channels := []string{
		notify.CustomerChannel(order.CustomerID),
		notify.GarageChannel(order.GarageID),
		notify.OpsChannel,
	}
	if courierID != nil {
		channels = append(channels, notify.CourierChannel(*courierID))
	}
	for _, channel := range channels {
		if err := s.notifier.Publish(ctx, channel, notify.EventOrderCancelled, payload); err != nil {
			s.logg.Warn(ctx, "notification publish failed: "+channel)
		}
	}
}

// FlagGarage records a penalty against a garage and refreshes its
// fulfillment aggregate. Used by the SLA sweep after an operator cancel.
func (s *Service) FlagGarage(ctx context.Context, orderID, garageID uuid.UUID, kind enums.PenaltyKind, note string) error {
	return s.txr.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		penalty := &models.GaragePenalty{
			GarageID: garageID,
			OrderID:  orderID,
			Kind:     kind,
		}
		if note != "" {
			penalty.Note = &note
		}
		if err := repo.CreatePenalty(ctx, penalty); err != nil {
			return err
		}
		return repo.RecalcGarageStats(ctx, garageID)
	})
}
