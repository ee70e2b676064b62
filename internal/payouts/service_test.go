package payouts

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
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	payouts   map[uuid.UUID]*models.GaragePayout
	reversals map[uuid.UUID]*models.PayoutReversal
	disputes  map[uuid.UUID]bool
	refunds   map[uuid.UUID]bool

	createErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		payouts:   map[uuid.UUID]*models.GaragePayout{},
		reversals: map[uuid.UUID]*models.PayoutReversal{},
		disputes:  map[uuid.UUID]bool{},
		refunds:   map[uuid.UUID]bool{},
	}
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) Create(_ context.Context, payout *models.GaragePayout) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.payouts[payout.ID] = payout
	return nil
}

func (f *fakeRepository) Update(_ context.Context, payout *models.GaragePayout) error {
	f.payouts[payout.ID] = payout
	return nil
}

func (f *fakeRepository) FindByOrder(_ context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
	for _, payout := range f.payouts {
		if payout.OrderID == orderID {
			return payout, nil
		}
	}
	return nil, errors.New(errors.CodeNotFound, "no payout for order")
}

func (f *fakeRepository) FindDue(_ context.Context, now time.Time, limit int) ([]models.GaragePayout, error) {
	var out []models.GaragePayout
	for _, payout := range f.payouts {
		if payout.Status == enums.PayoutStatusPending && !payout.ScheduledFor.After(now) {
			out = append(out, *payout)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepository) FindConfirmable(_ context.Context, olderThan time.Time, limit int) ([]models.GaragePayout, error) {
	var out []models.GaragePayout
	for _, payout := range f.payouts {
		confirmable := payout.Status == enums.PayoutStatusCompleted ||
			payout.Status == enums.PayoutStatusAwaitingConfirmation
		if confirmable && payout.CompletedAt != nil && payout.CompletedAt.Before(olderThan) {
			out = append(out, *payout)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateReversal(_ context.Context, reversal *models.PayoutReversal) error {
	f.reversals[reversal.ID] = reversal
	return nil
}

func (f *fakeRepository) UpdateReversal(_ context.Context, reversal *models.PayoutReversal) error {
	f.reversals[reversal.ID] = reversal
	return nil
}

func (f *fakeRepository) PendingReversalsForGarage(_ context.Context, garageID uuid.UUID) ([]models.PayoutReversal, error) {
	var out []models.PayoutReversal
	for _, reversal := range f.reversals {
		if reversal.GarageID == garageID && reversal.Status == enums.ReversalStatusPending {
			out = append(out, *reversal)
		}
	}
	return out, nil
}

func (f *fakeRepository) HasOpenDispute(_ context.Context, orderID uuid.UUID) (bool, error) {
	return f.disputes[orderID], nil
}

func (f *fakeRepository) HasActiveRefund(_ context.Context, orderID uuid.UUID) (bool, error) {
	return f.refunds[orderID], nil
}

func newTestService(repo Repository) *Service {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := config.PayoutConfig{DelayDays: 7, CommissionRate: "0.15", SellerFeeShareRate: "0.5"}
	return NewService(fakeTxRunner{}, repo, cfg, notify.NopTransport{}, logg)
}

func TestScheduleForOrder(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	completedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID:          uuid.New(),
		GarageID:    uuid.New(),
		TotalMinor:  30000,
		CompletedAt: &completedAt,
	}

	payout, err := svc.ScheduleForOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("ScheduleForOrder error: %v", err)
	}
	if payout.GrossMinor != 30000 {
		t.Errorf("gross = %d, want 30000", payout.GrossMinor)
	}
	if payout.CommissionMinor != 4500 {
		t.Errorf("commission = %d, want 4500", payout.CommissionMinor)
	}
	if payout.NetMinor != 25500 {
		t.Errorf("net = %d, want 25500", payout.NetMinor)
	}
	if payout.Status != enums.PayoutStatusPending {
		t.Errorf("status = %s, want pending", payout.Status)
	}
	if want := completedAt.Add(7 * 24 * time.Hour); !payout.ScheduledFor.Equal(want) {
		t.Errorf("scheduled_for = %v, want %v", payout.ScheduledFor, want)
	}
}

func TestScheduleForOrder_SecondCallAdoptsExisting(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	order := &models.Order{ID: uuid.New(), GarageID: uuid.New(), TotalMinor: 30000}
	existing := &models.GaragePayout{
		ID:      uuid.New(),
		OrderID: order.ID,
		Status:  enums.PayoutStatusPending,
	}
	repo.payouts[existing.ID] = existing
	repo.createErr = errors.New(errors.CodeInternal, `duplicate key value violates unique constraint "idx_garage_payouts_order_id"`)

	payout, err := svc.ScheduleForOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("ScheduleForOrder error: %v", err)
	}
	if payout.ID != existing.ID {
		t.Error("second schedule must adopt the existing payout")
	}
}

func TestReconcileForRefund_NoPayoutIsNoop(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	if err := svc.ReconcileForRefund(context.Background(), uuid.New(), 45000, "cancel"); err != nil {
		t.Fatalf("ReconcileForRefund error: %v", err)
	}
	if len(repo.reversals) != 0 {
		t.Error("no reversal may exist without a payout")
	}
}

func TestReconcileForRefund_CancellableStatuses(t *testing.T) {
	statuses := []enums.PayoutStatus{
		enums.PayoutStatusPending,
		enums.PayoutStatusProcessing,
		enums.PayoutStatusHeld,
		enums.PayoutStatusAwaitingConfirmation,
		enums.PayoutStatusPendingCompensationReview,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			repo := newFakeRepository()
			svc := newTestService(repo)

			payout := &models.GaragePayout{
				ID:      uuid.New(),
				OrderID: uuid.New(),
				Status:  status,
			}
			repo.payouts[payout.ID] = payout

			if err := svc.ReconcileForRefund(context.Background(), payout.OrderID, 45000, "cancel"); err != nil {
				t.Fatalf("ReconcileForRefund error: %v", err)
			}
			if payout.Status != enums.PayoutStatusCancelled {
				t.Errorf("status = %s, want cancelled", payout.Status)
			}
			if len(repo.reversals) != 0 {
				t.Error("cancellable payouts must not produce reversals")
			}
		})
	}
}

// A confirmed payout is immutable: the refund produces a pending reversal for
// the refunded amount and leaves the payout untouched.
func TestReconcileForRefund_ConfirmedCreatesReversal(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	payout := &models.GaragePayout{
		ID:       uuid.New(),
		GarageID: uuid.New(),
		OrderID:  uuid.New(),
		NetMinor: 25500,
		Status:   enums.PayoutStatusConfirmed,
	}
	repo.payouts[payout.ID] = payout

	if err := svc.ReconcileForRefund(context.Background(), payout.OrderID, 30000, "dispute resolved"); err != nil {
		t.Fatalf("ReconcileForRefund error: %v", err)
	}

	if payout.Status != enums.PayoutStatusConfirmed {
		t.Fatalf("confirmed payout was mutated to %s", payout.Status)
	}
	if payout.NetMinor != 25500 {
		t.Fatal("confirmed payout amount was mutated")
	}
	if len(repo.reversals) != 1 {
		t.Fatalf("reversals = %d, want 1", len(repo.reversals))
	}
	for _, reversal := range repo.reversals {
		if reversal.AmountMinor != 30000 {
			t.Errorf("reversal amount = %d, want 30000", reversal.AmountMinor)
		}
		if reversal.RemainingMinor != 30000 {
			t.Errorf("reversal remaining = %d, want 30000", reversal.RemainingMinor)
		}
		if reversal.Status != enums.ReversalStatusPending {
			t.Errorf("reversal status = %s, want pending", reversal.Status)
		}
		if reversal.OriginalPayoutID != payout.ID {
			t.Error("reversal must reference the original payout")
		}
	}
}

func TestHoldAndRelease(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	payout := &models.GaragePayout{
		ID:      uuid.New(),
		OrderID: uuid.New(),
		Status:  enums.PayoutStatusPending,
	}
	repo.payouts[payout.ID] = payout

	if err := svc.Hold(context.Background(), payout.OrderID, "open dispute"); err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	if payout.Status != enums.PayoutStatusHeld {
		t.Fatalf("status = %s, want held", payout.Status)
	}
	if payout.HeldReason == nil || *payout.HeldReason != "open dispute" {
		t.Error("held reason missing")
	}

	if err := svc.ReleaseHold(context.Background(), payout.OrderID); err != nil {
		t.Fatalf("ReleaseHold error: %v", err)
	}
	if payout.Status != enums.PayoutStatusPending {
		t.Errorf("status = %s, want pending after release", payout.Status)
	}
	if payout.HeldReason != nil {
		t.Error("held reason should clear on release")
	}
}

func TestProcessDue_HoldsDisputedOrders(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	payout := &models.GaragePayout{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		Status:       enums.PayoutStatusPending,
		ScheduledFor: time.Now().Add(-time.Hour),
		NetMinor:     25500,
	}
	repo.payouts[payout.ID] = payout
	repo.disputes[payout.OrderID] = true

	processed, err := svc.ProcessDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessDue error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
	if repo.payouts[payout.ID].Status != enums.PayoutStatusHeld {
		t.Errorf("status = %s, want held", repo.payouts[payout.ID].Status)
	}
}

func TestProcessDue_CancelsRefundedOrders(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	payout := &models.GaragePayout{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		Status:       enums.PayoutStatusPending,
		ScheduledFor: time.Now().Add(-time.Hour),
		NetMinor:     25500,
	}
	repo.payouts[payout.ID] = payout
	repo.refunds[payout.OrderID] = true

	if _, err := svc.ProcessDue(context.Background(), 10); err != nil {
		t.Fatalf("ProcessDue error: %v", err)
	}
	if repo.payouts[payout.ID].Status != enums.PayoutStatusCancelled {
		t.Errorf("status = %s, want cancelled", repo.payouts[payout.ID].Status)
	}
}

func TestProcessDue_NetsReversals(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	garageID := uuid.New()
	payout := &models.GaragePayout{
		ID:           uuid.New(),
		GarageID:     garageID,
		OrderID:      uuid.New(),
		Status:       enums.PayoutStatusPending,
		ScheduledFor: time.Now().Add(-time.Hour),
		NetMinor:     25500,
	}
	repo.payouts[payout.ID] = payout

	reversal := &models.PayoutReversal{
		ID:             uuid.New(),
		GarageID:       garageID,
		OrderID:        uuid.New(),
		AmountMinor:    10000,
		RemainingMinor: 10000,
		Status:         enums.ReversalStatusPending,
	}
	repo.reversals[reversal.ID] = reversal

	if _, err := svc.ProcessDue(context.Background(), 10); err != nil {
		t.Fatalf("ProcessDue error: %v", err)
	}

	got := repo.payouts[payout.ID]
	if got.Status != enums.PayoutStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.NetMinor != 15500 {
		t.Errorf("net after reversal = %d, want 15500", got.NetMinor)
	}
	applied := repo.reversals[reversal.ID]
	if applied.Status != enums.ReversalStatusApplied {
		t.Errorf("reversal status = %s, want applied", applied.Status)
	}
	if applied.AppliedPayoutID == nil || *applied.AppliedPayoutID != payout.ID {
		t.Error("reversal must record the payout it was netted against")
	}
	if applied.AmountMinor != 10000 {
		t.Errorf("reversal amount = %d, want the original 10000 preserved", applied.AmountMinor)
	}
	if applied.RemainingMinor != 0 {
		t.Errorf("reversal remaining = %d, want 0", applied.RemainingMinor)
	}
}

func TestProcessDue_PartialReversalStaysPending(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	garageID := uuid.New()
	payout := &models.GaragePayout{
		ID:           uuid.New(),
		GarageID:     garageID,
		OrderID:      uuid.New(),
		Status:       enums.PayoutStatusPending,
		ScheduledFor: time.Now().Add(-time.Hour),
		NetMinor:     25500,
	}
	repo.payouts[payout.ID] = payout

	reversal := &models.PayoutReversal{
		ID:             uuid.New(),
		GarageID:       garageID,
		OrderID:        uuid.New(),
		AmountMinor:    30000,
		RemainingMinor: 30000,
		Status:         enums.ReversalStatusPending,
	}
	repo.reversals[reversal.ID] = reversal

	if _, err := svc.ProcessDue(context.Background(), 10); err != nil {
		t.Fatalf("ProcessDue error: %v", err)
	}

	got := repo.payouts[payout.ID]
	if got.NetMinor != 0 {
		t.Errorf("net = %d, want 0 when the reversal swallows the payout", got.NetMinor)
	}
	remaining := repo.reversals[reversal.ID]
	if remaining.Status != enums.ReversalStatusPending {
		t.Errorf("reversal status = %s, want pending for the next cycle", remaining.Status)
	}
	if remaining.RemainingMinor != 4500 {
		t.Errorf("reversal remaining = %d, want 4500", remaining.RemainingMinor)
	}
	if remaining.AmountMinor != 30000 {
		t.Errorf("reversal amount = %d, want the original 30000 preserved", remaining.AmountMinor)
	}
}

func TestConfirmAged(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	old := time.Now().Add(-48 * time.Hour)
	payout := &models.GaragePayout{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		Status:      enums.PayoutStatusCompleted,
		CompletedAt: &old,
	}
	repo.payouts[payout.ID] = payout

	// First cycle parks the payout in the intermediate state.
	advanced, err := svc.ConfirmAged(context.Background(), time.Now().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ConfirmAged error: %v", err)
	}
	if advanced != 1 {
		t.Fatalf("advanced = %d, want 1", advanced)
	}
	got := repo.payouts[payout.ID]
	if got.Status != enums.PayoutStatusAwaitingConfirmation {
		t.Fatalf("status after first cycle = %s, want awaiting_confirmation", got.Status)
	}
	if got.ConfirmedAt != nil {
		t.Error("confirmed_at must not be set before confirmation")
	}

	// Second cycle makes it immutable.
	if _, err := svc.ConfirmAged(context.Background(), time.Now().Add(-24*time.Hour), 10); err != nil {
		t.Fatalf("ConfirmAged error: %v", err)
	}
	got = repo.payouts[payout.ID]
	if got.Status != enums.PayoutStatusConfirmed {
		t.Errorf("status after second cycle = %s, want confirmed", got.Status)
	}
	if got.ConfirmedAt == nil {
		t.Error("confirmed_at must be set")
	}
}
