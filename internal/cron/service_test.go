package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/partdash/partdash-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	acquires int
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	return f.acquired, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.releases++
	return nil
}

type fakeJob struct {
	name string
	runs int
	err  error
}

func (f *fakeJob) Name() string { return f.name }

func (f *fakeJob) Run(context.Context) error {
	f.runs++
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunCycle_SkipsWithoutLock(t *testing.T) {
	lock := &fakeLock{acquired: false}
	job := &fakeJob{name: "a"}
	svc := newTestService(t, lock, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Error("jobs must not run when the lock is held elsewhere")
	}
	if lock.releases != 0 {
		t.Error("must not release a lock it never acquired")
	}
}

func TestRunCycle_FailedJobDoesNotStopOthers(t *testing.T) {
	lock := &fakeLock{acquired: true}
	failing := &fakeJob{name: "a", err: errors.New("boom")}
	healthy := &fakeJob{name: "b"}
	svc := newTestService(t, lock, failing, healthy)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if failing.runs != 1 || healthy.runs != 1 {
		t.Errorf("runs = %d/%d, want 1/1", failing.runs, healthy.runs)
	}
	if lock.releases != 1 {
		t.Error("lock must be released after the cycle")
	}
}

func TestRunJob(t *testing.T) {
	lock := &fakeLock{acquired: true}
	job := &fakeJob{name: "payout-processing"}
	svc := newTestService(t, lock, job)

	if err := svc.RunJob(context.Background(), "payout-processing"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if job.runs != 1 {
		t.Errorf("runs = %d, want 1", job.runs)
	}
	if err := svc.RunJob(context.Background(), "no-such-job"); err == nil {
		t.Error("unknown job name must error")
	}
}

func TestRegistry(t *testing.T) {
	a := &fakeJob{name: "a"}
	b := &fakeJob{name: "b"}
	registry := NewRegistry(a, nil, b)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2 (nil dropped)", len(jobs))
	}
	if registry.Find("b") != b {
		t.Error("Find must return the registered job")
	}
	if registry.Find("c") != nil {
		t.Error("Find must return nil for unknown names")
	}
}
