package compensation

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

// Repository is the persistence surface for the compensation review queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindPayoutByOrder(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error)
	CreatePayout(ctx context.Context, payout *models.GaragePayout) error
	UpdatePayout(ctx context.Context, payout *models.GaragePayout) error
	ListPendingReview(ctx context.Context, limit int) ([]models.GaragePayout, error)

	LatestRequestForOrder(ctx context.Context, orderID uuid.UUID) (*models.CancellationRequest, error)
	SetRequestCompensation(ctx context.Context, requestID uuid.UUID, status enums.CompensationStatus) error
	CreatePenalty(ctx context.Context, penalty *models.GaragePenalty) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) FindPayoutByOrder(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
	var payout models.GaragePayout
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payout).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "no payout for order")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading payout")
	}
	return &payout, nil
}

func (r *gormRepository) CreatePayout(ctx context.Context, payout *models.GaragePayout) error {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating payout")
	}
	return nil
}

func (r *gormRepository) UpdatePayout(ctx context.Context, payout *models.GaragePayout) error {
	if err := r.db.WithContext(ctx).Save(payout).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating payout")
	}
	return nil
}

func (r *gormRepository) ListPendingReview(ctx context.Context, limit int) ([]models.GaragePayout, error) {
	var payouts []models.GaragePayout
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutStatusPendingCompensationReview).
		Order("created_at ASC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing pending reviews")
	}
	return payouts, nil
}

func (r *gormRepository) LatestRequestForOrder(ctx context.Context, orderID uuid.UUID) (*models.CancellationRequest, error) {
	var request models.CancellationRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&request).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "no cancellation request for order")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading cancellation request")
	}
	return &request, nil
}

// SetRequestCompensation mutates the only field of a cancellation request
// that may ever change after creation.
func (r *gormRepository) SetRequestCompensation(ctx context.Context, requestID uuid.UUID, status enums.CompensationStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.CancellationRequest{}).
		Where("id = ?", requestID).
		Update("compensation_status", status).Error
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating compensation status")
	}
	return nil
}

func (r *gormRepository) CreatePenalty(ctx context.Context, penalty *models.GaragePenalty) error {
	if err := r.db.WithContext(ctx).Create(penalty).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating garage penalty")
	}
	return nil
}
