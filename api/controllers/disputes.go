package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/api/responses"
	"github.com/partdash/partdash-backend/api/validators"
	"github.com/partdash/partdash-backend/pkg/db/models"
	pkgerrors "github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/logger"
)

// DisputeService is the slice of the disputes service the API uses.
type DisputeService interface {
	Open(ctx context.Context, orderID, openedBy uuid.UUID, reason string) (*models.Dispute, error)
	MarkGarageResponded(ctx context.Context, disputeID uuid.UUID) error
	Resolve(ctx context.Context, disputeID, resolvedBy uuid.UUID, favorBuyer bool, resolution string) error
}

type openDisputeRequest struct {
	CustomerID string `json:"customerId" validate:"required,uuid"`
	Reason     string `json:"reason" validate:"required,min=3,max=500"`
}

type disputeResponse struct {
	ID       uuid.UUID `json:"id"`
	OrderID  uuid.UUID `json:"orderId"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason"`
	OpenedAt time.Time `json:"openedAt"`
}

// OpenDispute raises a dispute on a delivered order.
func OpenDispute(svc DisputeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var body openDisputeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := uuid.Parse(body.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}

		dispute, err := svc.Open(r.Context(), orderID, customerID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, disputeResponse{
			ID:       dispute.ID,
			OrderID:  dispute.OrderID,
			Status:   dispute.Status.String(),
			Reason:   dispute.Reason,
			OpenedAt: dispute.CreatedAt,
		})
	}
}

// RecordGarageResponse stamps the garage's answer inside the response window.
func RecordGarageResponse(svc DisputeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := uuid.Parse(chi.URLParam(r, "disputeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute id"))
			return
		}
		if err := svc.MarkGarageResponded(r.Context(), disputeID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"disputeId": disputeID, "responded": true})
	}
}

type resolveDisputeRequest struct {
	ResolvedBy string `json:"resolvedBy" validate:"required,uuid"`
	FavorBuyer bool   `json:"favorBuyer"`
	Resolution string `json:"resolution" validate:"required,min=3,max=500"`
}

// ResolveDispute closes a dispute with an operator decision.
func ResolveDispute(svc DisputeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := uuid.Parse(chi.URLParam(r, "disputeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute id"))
			return
		}

		var body resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resolvedBy, err := uuid.Parse(body.ResolvedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resolver id"))
			return
		}

		if err := svc.Resolve(r.Context(), disputeID, resolvedBy, body.FavorBuyer, body.Resolution); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"disputeId": disputeID, "favorBuyer": body.FavorBuyer})
	}
}
