package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/api/responses"
	"github.com/partdash/partdash-backend/api/validators"
	"github.com/partdash/partdash-backend/internal/compensation"
	pkgerrors "github.com/partdash/partdash-backend/pkg/errors"
	"github.com/partdash/partdash-backend/pkg/logger"
)

const defaultReviewPageSize = 50

// CompensationService is the slice of the compensation service the API uses.
type CompensationService interface {
	ListPending(ctx context.Context, limit int) ([]compensation.ReviewItem, error)
	Decide(ctx context.Context, orderID uuid.UUID, approve bool, reviewerID uuid.UUID, note string) error
}

type reviewItemResponse struct {
	OrderID            uuid.UUID `json:"orderId"`
	GarageID           uuid.UUID `json:"garageId"`
	PayoutStatus       string    `json:"payoutStatus"`
	NetMinor           int64     `json:"netMinor"`
	PotentialMinor     int64     `json:"potentialCompensationMinor"`
	CompensationReason string    `json:"compensationReason,omitempty"`
	CancellationStage  string    `json:"cancellationStage,omitempty"`
	FaultParty         string    `json:"faultParty,omitempty"`
	FeeMinor           int64     `json:"feeMinor,omitempty"`
	QueuedAt           time.Time `json:"queuedAt"`
}

// ListCompensationReviews returns the pending compensation review queue,
// oldest first.
func ListCompensationReviews(svc CompensationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultReviewPageSize
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = value
		}

		items, err := svc.ListPending(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]reviewItemResponse, 0, len(items))
		for _, item := range items {
			resp := reviewItemResponse{
				OrderID:        item.Payout.OrderID,
				GarageID:       item.Payout.GarageID,
				PayoutStatus:   item.Payout.Status.String(),
				NetMinor:       item.Payout.NetMinor,
				PotentialMinor: item.Payout.PotentialCompensationMinor,
				QueuedAt:       item.Payout.UpdatedAt,
			}
			if item.Payout.CompensationReason != nil {
				resp.CompensationReason = *item.Payout.CompensationReason
			}
			if item.Request != nil {
				resp.CancellationStage = item.Request.Stage.String()
				resp.FaultParty = item.Request.FaultParty.String()
				resp.FeeMinor = item.Request.FeeMinor
			}
			out = append(out, resp)
		}
		responses.WriteSuccess(w, map[string]any{"items": out})
	}
}

type compensationDecisionRequest struct {
	Approve    bool   `json:"approve"`
	ReviewerID string `json:"reviewerId" validate:"required,uuid"`
	Note       string `json:"note" validate:"max=500"`
}

// DecideCompensation applies an operator's approve/deny decision to a parked
// payout.
func DecideCompensation(svc CompensationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var body compensationDecisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reviewerID, err := uuid.Parse(body.ReviewerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reviewer id"))
			return
		}

		if err := svc.Decide(r.Context(), orderID, body.Approve, reviewerID, body.Note); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orderId": orderID, "approved": body.Approve})
	}
}
