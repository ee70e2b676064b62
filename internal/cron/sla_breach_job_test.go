package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
)

type fakeFlagger struct {
	flags []flagCall
}

type flagCall struct {
	orderID  uuid.UUID
	garageID uuid.UUID
	kind     enums.PenaltyKind
}

func (f *fakeFlagger) FlagGarage(_ context.Context, orderID, garageID uuid.UUID, kind enums.PenaltyKind, _ string) error {
	f.flags = append(f.flags, flagCall{orderID: orderID, garageID: garageID, kind: kind})
	return nil
}

func TestSLABreachJob(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	order := models.Order{
		ID:       uuid.New(),
		GarageID: uuid.New(),
		Status:   enums.OrderStatusPreparing,
	}
	repo := &fakeSweepRepo{preparing: []models.Order{order}}
	canceller := &fakeCanceller{}
	flagger := &fakeFlagger{}

	jobIface, err := NewSLABreachJob(SLABreachJobParams{
		Logger:    testLogger(),
		Repo:      repo,
		Canceller: canceller,
		Flagger:   flagger,
		SLA:       72 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewSLABreachJob: %v", err)
	}
	job := jobIface.(*slaBreachJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-72 * time.Hour); !repo.lastCutoff.Equal(want) {
		t.Errorf("cutoff = %s, want %s", repo.lastCutoff, want)
	}
	if len(canceller.inputs) != 1 || canceller.inputs[0].Actor != enums.ActorOperator {
		t.Fatal("breach must cancel through the operator path")
	}
	if len(flagger.flags) != 1 {
		t.Fatal("breach must flag the garage")
	}
	flag := flagger.flags[0]
	if flag.kind != enums.PenaltySLABreach || flag.garageID != order.GarageID {
		t.Errorf("unexpected flag: %+v", flag)
	}
}
