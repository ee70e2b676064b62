package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
)

type fakeScheduler struct {
	scheduled []models.Order
	err       error
}

func (f *fakeScheduler) ScheduleForOrder(_ context.Context, order *models.Order) (*models.GaragePayout, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.scheduled = append(f.scheduled, *order)
	return &models.GaragePayout{ID: uuid.New(), OrderID: order.ID}, nil
}

func TestDeliveryConfirmJob(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	deliveredAt := now.Add(-30 * time.Hour)
	order := models.Order{
		ID:          uuid.New(),
		GarageID:    uuid.New(),
		Status:      enums.OrderStatusDelivered,
		TotalMinor:  30000,
		DeliveredAt: &deliveredAt,
	}
	repo := &fakeSweepRepo{unconfirmed: []models.Order{order}}
	payouts := &fakeScheduler{}

	jobIface, err := NewDeliveryConfirmJob(DeliveryConfirmJobParams{
		Logger:   testLogger(),
		Repo:     repo,
		Payouts:  payouts,
		GraceAge: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewDeliveryConfirmJob: %v", err)
	}
	job := jobIface.(*deliveryConfirmJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-24 * time.Hour); !repo.lastCutoff.Equal(want) {
		t.Errorf("cutoff = %s, want %s", repo.lastCutoff, want)
	}
	if len(repo.completed) != 1 || repo.completed[0] != order.ID {
		t.Fatal("order must be marked completed")
	}
	if len(payouts.scheduled) != 1 {
		t.Fatal("payout must be scheduled after completion")
	}
	scheduled := payouts.scheduled[0]
	if scheduled.Status != enums.OrderStatusCompleted {
		t.Errorf("scheduler must see the completed order, got %s", scheduled.Status)
	}
	if scheduled.CompletedAt == nil || !scheduled.CompletedAt.Equal(now) {
		t.Error("completion timestamp must be stamped before scheduling")
	}
}

func TestDeliveryConfirmJob_PayoutFailureKeepsCompletion(t *testing.T) {
	deliveredAt := time.Now().Add(-48 * time.Hour)
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusDelivered, DeliveredAt: &deliveredAt}
	repo := &fakeSweepRepo{unconfirmed: []models.Order{order}}
	payouts := &fakeScheduler{err: errors.New("db down")}

	jobIface, err := NewDeliveryConfirmJob(DeliveryConfirmJobParams{
		Logger:  testLogger(),
		Repo:    repo,
		Payouts: payouts,
	})
	if err != nil {
		t.Fatalf("NewDeliveryConfirmJob: %v", err)
	}

	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected the schedule failure to surface")
	}
	if len(repo.completed) != 1 {
		t.Error("completion stands; the backfill sweep re-schedules the payout")
	}
}

func TestDeliveryConfirmJob_CustomName(t *testing.T) {
	jobIface, err := NewDeliveryConfirmJob(DeliveryConfirmJobParams{
		Logger:   testLogger(),
		Repo:     &fakeSweepRepo{},
		Payouts:  &fakeScheduler{},
		JobName:  "delivery-autoconfirm-legacy",
		GraceAge: 48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewDeliveryConfirmJob: %v", err)
	}
	if jobIface.Name() != "delivery-autoconfirm-legacy" {
		t.Errorf("name = %s", jobIface.Name())
	}
}
