package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
)

type fakeSweepRepo struct {
	orphans     []models.Order
	preparing   []models.Order
	unconfirmed []models.Order
	noPayout    []models.Order
	completed   []uuid.UUID
	lastCutoff  time.Time
}

func (f *fakeSweepRepo) FindOrphanOrders(_ context.Context, cutoff time.Time, _ int) ([]models.Order, error) {
	f.lastCutoff = cutoff
	return f.orphans, nil
}

func (f *fakeSweepRepo) FindPreparingSince(_ context.Context, cutoff time.Time, _ int) ([]models.Order, error) {
	f.lastCutoff = cutoff
	return f.preparing, nil
}

func (f *fakeSweepRepo) FindUnconfirmedDeliveries(_ context.Context, cutoff time.Time, _ int) ([]models.Order, error) {
	f.lastCutoff = cutoff
	return f.unconfirmed, nil
}

func (f *fakeSweepRepo) FindCompletedWithoutPayout(context.Context, int) ([]models.Order, error) {
	return f.noPayout, nil
}

func (f *fakeSweepRepo) MarkOrderCompleted(_ context.Context, orderID uuid.UUID, _ time.Time) error {
	f.completed = append(f.completed, orderID)
	return nil
}

type fakeCanceller struct {
	inputs []cancellation.Input
	errFor map[uuid.UUID]error
}

func (f *fakeCanceller) Cancel(_ context.Context, input cancellation.Input) (*cancellation.Result, error) {
	f.inputs = append(f.inputs, input)
	if err := f.errFor[input.OrderID]; err != nil {
		return nil, err
	}
	return &cancellation.Result{}, nil
}

func TestOrphanOrdersJob(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	stale := models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingPayment}
	repo := &fakeSweepRepo{orphans: []models.Order{stale}}
	canceller := &fakeCanceller{}

	jobIface, err := NewOrphanOrdersJob(OrphanOrdersJobParams{
		Logger:    testLogger(),
		Repo:      repo,
		Canceller: canceller,
		MaxAge:    2 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOrphanOrdersJob: %v", err)
	}
	job := jobIface.(*orphanOrdersJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-2 * time.Hour); !repo.lastCutoff.Equal(want) {
		t.Errorf("cutoff = %s, want %s", repo.lastCutoff, want)
	}
	if len(canceller.inputs) != 1 {
		t.Fatalf("cancel calls = %d, want 1", len(canceller.inputs))
	}
	input := canceller.inputs[0]
	if input.Actor != enums.ActorOperator || input.OrderID != stale.ID {
		t.Errorf("unexpected cancel input: %+v", input)
	}
	if input.ActorID != uuid.Nil {
		t.Error("system cancels carry no actor id")
	}
}

func TestOrphanOrdersJob_RowFailureIsolated(t *testing.T) {
	bad := models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingPayment}
	good := models.Order{ID: uuid.New(), Status: enums.OrderStatusPendingPayment}
	repo := &fakeSweepRepo{orphans: []models.Order{bad, good}}
	canceller := &fakeCanceller{errFor: map[uuid.UUID]error{bad.ID: errors.New("db down")}}

	jobIface, err := NewOrphanOrdersJob(OrphanOrdersJobParams{
		Logger:    testLogger(),
		Repo:      repo,
		Canceller: canceller,
	})
	if err != nil {
		t.Fatalf("NewOrphanOrdersJob: %v", err)
	}

	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected the row failure to surface")
	}
	if len(canceller.inputs) != 2 {
		t.Errorf("cancel calls = %d, want 2 (batch continues past failures)", len(canceller.inputs))
	}
}
