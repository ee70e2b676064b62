package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/api/responses"
	"github.com/partdash/partdash-backend/api/validators"
	"github.com/partdash/partdash-backend/internal/cancellation"
	"github.com/partdash/partdash-backend/pkg/enums"
	pkgerrors "github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/logger"
)

// CancellationService is the slice of the cancellation service the API uses.
type CancellationService interface {
	Cancel(ctx context.Context, input cancellation.Input) (*cancellation.Result, error)
}

type cancelOrderRequest struct {
	ActorID    string `json:"actorId" validate:"omitempty,uuid"`
	ActorType  string `json:"actorType" validate:"required,oneof=customer garage courier operator"`
	Reason     string `json:"reason" validate:"required,min=3,max=500"`
	ReasonCode string `json:"reasonCode" validate:"omitempty"`
}

type cancellationResponse struct {
	OrderID            uuid.UUID `json:"orderId"`
	OrderStatus        string    `json:"orderStatus"`
	Stage              string    `json:"stage"`
	FaultParty         string    `json:"faultParty"`
	FeeMinor           int64     `json:"feeMinor"`
	DeliveryFeeMinor   int64     `json:"deliveryFeeRetainedMinor"`
	RefundMinor        int64     `json:"refundMinor"`
	FirstFreeApplied   bool      `json:"firstFreeApplied"`
	CompensationStatus string    `json:"compensationStatus"`
	Replayed           bool      `json:"replayed"`
	RequestedAt        time.Time `json:"requestedAt"`
}

// CancelOrder handles the cancellation entrypoint for all four actors.
// Idempotent replays come back 200 with the recorded outcome.
func CancelOrder(svc CancellationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var body cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorType, err := enums.ParseActorType(body.ActorType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor type"))
			return
		}

		input := cancellation.Input{
			OrderID: orderID,
			Actor:   actorType,
			Reason:  body.Reason,
		}
		if body.ActorID != "" {
			actorID, err := uuid.Parse(body.ActorID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor id"))
				return
			}
			input.ActorID = actorID
		}
		if body.ReasonCode != "" {
			code, err := enums.ParseCourierCancelReason(body.ReasonCode)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason code"))
				return
			}
			input.ReasonCode = &code
		}

		result, err := svc.Cancel(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCancellationResponse(result))
	}
}

func newCancellationResponse(result *cancellation.Result) cancellationResponse {
	resp := cancellationResponse{
		Replayed: result.Replayed,
	}
	if result.Order != nil {
		resp.OrderID = result.Order.ID
		resp.OrderStatus = result.Order.Status.String()
	}
	if result.Request != nil {
		resp.Stage = result.Request.Stage.String()
		resp.FaultParty = result.Request.FaultParty.String()
		resp.FeeMinor = result.Request.FeeMinor
		resp.DeliveryFeeMinor = result.Request.DeliveryFeeRetainedMinor
		resp.RefundMinor = result.Request.RefundMinor
		resp.FirstFreeApplied = result.Request.FirstFreeApplied
		resp.CompensationStatus = result.Request.CompensationStatus.String()
		resp.RequestedAt = result.Request.CreatedAt
	}
	return resp
}
