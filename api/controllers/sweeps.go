package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/partdash/partdash-backend/api/responses"
	pkgerrors "github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/logger"
)

// SweepRunner runs a registered sweep job by name.
type SweepRunner interface {
	RunJob(ctx context.Context, name string) error
}

// TriggerSweep runs one sweep job on demand. The handler invokes the same
// Run path the scheduler does, so a manual trigger and a scheduled run are
// indistinguishable to the job.
func TriggerSweep(runner SweepRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sweep name is required"))
			return
		}
		if err := runner.RunJob(r.Context(), name); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"job": name, "status": "completed"})
	}
}
