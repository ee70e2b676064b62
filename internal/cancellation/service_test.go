package cancellation

import (
	"context"
	"io"
	"testing"
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

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	order              *models.Order
	priorCancellations int64
	latestRequest      *models.CancellationRequest

	savedOrders  []*models.Order
	requests     []*models.CancellationRequest
	history      []*models.OrderStatusHistory
	penalties    []*models.GaragePenalty
	statsRecalcs []uuid.UUID
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) FindOrderForUpdate(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeRepository) SaveOrder(_ context.Context, order *models.Order) error {
	f.savedOrders = append(f.savedOrders, order)
	f.order = order
	return nil
}

func (f *fakeRepository) CountCustomerCancellations(context.Context, uuid.UUID) (int64, error) {
	return f.priorCancellations, nil
}

func (f *fakeRepository) CreateRequest(_ context.Context, request *models.CancellationRequest) error {
	f.requests = append(f.requests, request)
	return nil
}

func (f *fakeRepository) LatestRequestForOrder(context.Context, uuid.UUID) (*models.CancellationRequest, error) {
	if f.latestRequest == nil {
		return nil, errors.New(errors.CodeNotFound, "no cancellation request for order")
	}
	return f.latestRequest, nil
}

func (f *fakeRepository) CreateStatusHistory(_ context.Context, entry *models.OrderStatusHistory) error {
	f.history = append(f.history, entry)
	return nil
}

func (f *fakeRepository) CreatePenalty(_ context.Context, penalty *models.GaragePenalty) error {
	f.penalties = append(f.penalties, penalty)
	return nil
}

func (f *fakeRepository) RecalcGarageStats(_ context.Context, garageID uuid.UUID) error {
	f.statsRecalcs = append(f.statsRecalcs, garageID)
	return nil
}

type fakeRefunds struct {
	calls int
	last  *models.CancellationRequest
	err   error
}

func (f *fakeRefunds) Execute(_ context.Context, _ *models.Order, request *models.CancellationRequest) error {
	f.calls++
	f.last = request
	return f.err
}

type fakePayouts struct {
	calls      int
	lastRefund int64
}

func (f *fakePayouts) ReconcileForRefund(_ context.Context, _ uuid.UUID, refundMinor int64, _ string) error {
	f.calls++
	f.lastRefund = refundMinor
	return nil
}

type fakeCompensation struct {
	parked []*models.CancellationRequest
}

func (f *fakeCompensation) Park(_ context.Context, _ *models.Order, request *models.CancellationRequest) error {
	f.parked = append(f.parked, request)
	return nil
}

type testHarness struct {
	svc          *Service
	repo         *fakeRepository
	refunds      *fakeRefunds
	payouts      *fakePayouts
	compensation *fakeCompensation
}

func newHarness(order *models.Order, cfg config.CancellationConfig) *testHarness {
	repo := &fakeRepository{order: order}
	refunds := &fakeRefunds{}
	payouts := &fakePayouts{}
	compensation := &fakeCompensation{}
	svc := NewService(Params{
		TxRunner:     fakeTxRunner{},
		Repo:         repo,
		Config:       cfg,
		Refunds:      refunds,
		Payouts:      payouts,
		Compensation: compensation,
		Notifier:     notify.NopTransport{},
		Logger:       logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics:      metrics.NewCancellationMetrics(nil),
	})
	return &testHarness{svc: svc, repo: repo, refunds: refunds, payouts: payouts, compensation: compensation}
}

func makeOrder(status enums.OrderStatus, paid bool) *models.Order {
	courierID := uuid.New()
	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      1042,
		CustomerID:       uuid.New(),
		GarageID:         uuid.New(),
		CourierID:        &courierID,
		Status:           status,
		PaymentStatus:    enums.PaymentStatusUnpaid,
		Currency:         "QAR",
		PartPriceMinor:   50000,
		DeliveryFeeMinor: 5000,
		TotalMinor:       50000,
		CreatedAt:        time.Now().Add(-90 * time.Minute),
	}
	if paid {
		order.PaymentStatus = enums.PaymentStatusPaid
		ref := "pay_" + order.ID.String()[:8]
		order.PaymentRef = &ref
	}
	return order
}

func defaultConfig() config.CancellationConfig {
	return config.CancellationConfig{FirstCancellationFree: true}
}

// Buyer cancels a preparing order with one prior cancellation: 10% of the
// part price is retained, the delivery fee is not.
func TestCancel_BuyerDuringPreparation(t *testing.T) {
	order := makeOrder(enums.OrderStatusPreparing, true)
	h := newHarness(order, defaultConfig())
	h.repo.priorCancellations = 1

	result, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: order.CustomerID,
		Actor:   enums.ActorCustomer,
		Reason:  "found the part cheaper elsewhere",
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	request := result.Request
	if request.FeeMinor != 5000 {
		t.Errorf("fee = %d, want 5000", request.FeeMinor)
	}
	if request.DeliveryFeeRetainedMinor != 0 {
		t.Errorf("delivery retained = %d, want 0", request.DeliveryFeeRetainedMinor)
	}
	if request.RefundMinor != 45000 {
		t.Errorf("refund = %d, want 45000", request.RefundMinor)
	}
	if request.Stage != enums.StageDuringPreparation {
		t.Errorf("stage = %s, want during_preparation", request.Stage)
	}
	if result.Order.Status != enums.OrderStatusCancelledByCustomer {
		t.Errorf("order status = %s, want cancelled_by_customer", result.Order.Status)
	}
	if result.Order.CourierID != nil {
		t.Error("courier assignment should be released")
	}
	if h.refunds.calls != 1 {
		t.Errorf("refund calls = %d, want 1", h.refunds.calls)
	}
	if h.payouts.calls != 1 {
		t.Errorf("payout reconcile calls = %d, want 1", h.payouts.calls)
	}
	if len(h.compensation.parked) != 1 {
		t.Errorf("compensation parked = %d, want 1", len(h.compensation.parked))
	}
	if len(h.repo.history) != 1 || h.repo.history[0].ToStatus != enums.OrderStatusCancelledByCustomer {
		t.Error("expected a status history row for the cancellation")
	}
}

// A buyer's first-ever cancellation is free regardless of stage.
func TestCancel_BuyerFirstCancellationFree(t *testing.T) {
	order := makeOrder(enums.OrderStatusPreparing, true)
	h := newHarness(order, defaultConfig())
	h.repo.priorCancellations = 0

	result, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: order.CustomerID,
		Actor:   enums.ActorCustomer,
		Reason:  "ordered the wrong part",
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if result.Request.FeeMinor != 0 {
		t.Errorf("fee = %d, want 0", result.Request.FeeMinor)
	}
	if !result.Request.FirstFreeApplied {
		t.Error("expected first-free flag on the audit row")
	}
	if result.Request.RefundMinor != 50000 {
		t.Errorf("refund = %d, want 50000", result.Request.RefundMinor)
	}
	if len(h.compensation.parked) != 0 {
		t.Error("a free cancellation must not park compensation")
	}
}

// Buyer cancels in transit on a later cancellation: 10% fee plus the full
// delivery fee retained.
func TestCancel_BuyerInDelivery(t *testing.T) {
	order := makeOrder(enums.OrderStatusInTransit, true)
	h := newHarness(order, defaultConfig())
	h.repo.priorCancellations = 1

	result, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: order.CustomerID,
		Actor:   enums.ActorCustomer,
		Reason:  "no longer needed",
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	request := result.Request
	if request.FeeMinor != 5000 {
		t.Errorf("fee = %d, want 5000", request.FeeMinor)
	}
	if request.DeliveryFeeRetainedMinor != 5000 {
		t.Errorf("delivery retained = %d, want 5000", request.DeliveryFeeRetainedMinor)
	}
	if request.RefundMinor != 40000 {
		t.Errorf("refund = %d, want 40000", request.RefundMinor)
	}
	if sum := request.FeeMinor + request.DeliveryFeeRetainedMinor + request.RefundMinor; sum != order.TotalMinor {
		t.Errorf("books out of balance: %d != %d", sum, order.TotalMinor)
	}
}

// Garage cancels a confirmed paid order: full refund, no fee, fulfillment
// aggregate recalculated.
func TestCancel_GarageConfirmed(t *testing.T) {
	order := makeOrder(enums.OrderStatusConfirmed, true)
	order.PartPriceMinor = 30000
	order.DeliveryFeeMinor = 0
	order.TotalMinor = 30000
	h := newHarness(order, defaultConfig())

	result, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: order.GarageID,
		Actor:   enums.ActorGarage,
		Reason:  "part out of stock",
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if result.Request.FeeMinor != 0 {
		t.Errorf("fee = %d, want 0", result.Request.FeeMinor)
	}
	if result.Request.RefundMinor != 30000 {
		t.Errorf("refund = %d, want 30000", result.Request.RefundMinor)
	}
	if result.Request.FaultParty != enums.FaultGarage {
		t.Errorf("fault = %s, want garage", result.Request.FaultParty)
	}
	if result.Order.Status != enums.OrderStatusCancelledByGarage {
		t.Errorf("order status = %s, want cancelled_by_garage", result.Order.Status)
	}
	if len(h.repo.statsRecalcs) != 1 || h.repo.statsRecalcs[0] != order.GarageID {
		t.Error("expected fulfillment aggregate recalc for the garage")
	}
	if h.refunds.calls != 1 {
		t.Errorf("refund calls = %d, want 1", h.refunds.calls)
	}
}

func TestCancel_CourierReasonTable(t *testing.T) {
	tests := []struct {
		reason       enums.CourierCancelReason
		wantFault    enums.FaultParty
		wantFee      int64
		wantDelivery int64
		wantRefund   int64
		wantPenalty  bool
	}{
		{enums.CourierReasonCantFindGarage, enums.FaultPlatform, 0, 0, 50000, false},
		{enums.CourierReasonVehicleIssue, enums.FaultPlatform, 0, 0, 50000, false},
		{enums.CourierReasonPartDamagedAtPickup, enums.FaultGarage, 0, 0, 50000, true},
		{enums.CourierReasonCustomerUnreachable, enums.FaultCustomer, 5000, 5000, 40000, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.reason), func(t *testing.T) {
			order := makeOrder(enums.OrderStatusInTransit, true)
			h := newHarness(order, defaultConfig())
			reason := tc.reason

			result, err := h.svc.Cancel(context.Background(), Input{
				OrderID:    order.ID,
				ActorID:    *order.CourierID,
				Actor:      enums.ActorCourier,
				Reason:     "courier reported " + string(tc.reason),
				ReasonCode: &reason,
			})
			if err != nil {
				t.Fatalf("Cancel error: %v", err)
			}
			request := result.Request
			if request.FaultParty != tc.wantFault {
				t.Errorf("fault = %s, want %s", request.FaultParty, tc.wantFault)
			}
			if request.FeeMinor != tc.wantFee {
				t.Errorf("fee = %d, want %d", request.FeeMinor, tc.wantFee)
			}
			if request.DeliveryFeeRetainedMinor != tc.wantDelivery {
				t.Errorf("delivery retained = %d, want %d", request.DeliveryFeeRetainedMinor, tc.wantDelivery)
			}
			if request.RefundMinor != tc.wantRefund {
				t.Errorf("refund = %d, want %d", request.RefundMinor, tc.wantRefund)
			}
			if got := len(h.repo.penalties) > 0; got != tc.wantPenalty {
				t.Errorf("penalty recorded = %v, want %v", got, tc.wantPenalty)
			}
		})
	}
}

func TestCancel_CourierRequiresReasonCode(t *testing.T) {
	order := makeOrder(enums.OrderStatusInTransit, true)
	h := newHarness(order, defaultConfig())

	_, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: *order.CourierID,
		Actor:   enums.ActorCourier,
		Reason:  "cannot deliver",
	})
	if !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("error = %v, want VALIDATION_ERROR", err)
	}
	if len(h.repo.requests) != 0 {
		t.Error("no audit row may exist after a rejected cancellation")
	}
}

func TestCancel_OwnershipChecks(t *testing.T) {
	order := makeOrder(enums.OrderStatusPreparing, true)
	h := newHarness(order, defaultConfig())

	_, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: uuid.New(),
		Actor:   enums.ActorCustomer,
		Reason:  "not my order",
	})
	if !errors.HasCode(err, errors.CodeForbidden) {
		t.Fatalf("error = %v, want FORBIDDEN", err)
	}
}

func TestCancel_IllegalStatusForActor(t *testing.T) {
	order := makeOrder(enums.OrderStatusInTransit, true)
	h := newHarness(order, defaultConfig())

	_, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: order.GarageID,
		Actor:   enums.ActorGarage,
		Reason:  "too late to cancel",
	})
	if !errors.HasCode(err, errors.CodeStateConflict) {
		t.Fatalf("error = %v, want STATE_CONFLICT", err)
	}
}

func TestCancel_BuyerAlreadyTerminal(t *testing.T) {
	order := makeOrder(enums.OrderStatusCancelledByCustomer, true)
	h := newHarness(order, defaultConfig())

	_, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: order.CustomerID,
		Actor:   enums.ActorCustomer,
		Reason:  "retry",
	})
	if !errors.HasCode(err, errors.CodeAlreadyTerminal) {
		t.Fatalf("error = %v, want ALREADY_TERMINAL", err)
	}
	if h.refunds.calls != 0 {
		t.Error("no refund may be attempted for a terminal order")
	}
}

func TestCancel_OperatorReplaysTerminal(t *testing.T) {
	order := makeOrder(enums.OrderStatusCancelledByCustomer, true)
	prior := &models.CancellationRequest{
		ID:          uuid.New(),
		OrderID:     order.ID,
		RefundMinor: 45000,
		FeeMinor:    5000,
	}
	h := newHarness(order, defaultConfig())
	h.repo.latestRequest = prior

	result, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: uuid.Nil,
		Actor:   enums.ActorOperator,
		Reason:  "sweep retry",
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if !result.Replayed {
		t.Fatal("operator path must replay a terminal order")
	}
	if result.Request != prior {
		t.Error("replay must return the committed outcome")
	}
	if len(h.repo.requests) != 0 || h.refunds.calls != 0 || h.payouts.calls != 0 {
		t.Error("replay must not produce side effects")
	}
}

func TestCancel_UnpaidOrderSkipsRefund(t *testing.T) {
	order := makeOrder(enums.OrderStatusPendingPayment, false)
	h := newHarness(order, defaultConfig())

	result, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: uuid.Nil,
		Actor:   enums.ActorOperator,
		Reason:  "payment never arrived",
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if h.refunds.calls != 0 {
		t.Error("unpaid orders must not hit the refund gateway")
	}
	if h.payouts.calls != 0 {
		t.Error("unpaid orders have nothing to reconcile")
	}
	if result.Order.Status != enums.OrderStatusCancelledByOperator {
		t.Errorf("order status = %s, want cancelled_by_operator", result.Order.Status)
	}
}

// A gateway failure after commit never unwinds the cancellation itself.
func TestCancel_RefundFailureDoesNotFailCancel(t *testing.T) {
	order := makeOrder(enums.OrderStatusPreparing, true)
	h := newHarness(order, defaultConfig())
	h.repo.priorCancellations = 2
	h.refunds.err = errors.New(errors.CodeDependency, "gateway down")

	result, err := h.svc.Cancel(context.Background(), Input{
		OrderID: order.ID,
		ActorID: order.CustomerID,
		Actor:   enums.ActorCustomer,
		Reason:  "changed my mind",
	})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if result.Order.Status != enums.OrderStatusCancelledByCustomer {
		t.Error("cancellation must stand even when the refund transfer fails")
	}
	if len(h.repo.requests) != 1 {
		t.Error("audit row must remain committed")
	}
}
