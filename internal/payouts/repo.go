package payouts

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

// Repository persists garage payouts and their reversals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, payout *models.GaragePayout) error
	Update(ctx context.Context, payout *models.GaragePayout) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.GaragePayout, error)
	FindConfirmable(ctx context.Context, olderThan time.Time, limit int) ([]models.GaragePayout, error)

	CreateReversal(ctx context.Context, reversal *models.PayoutReversal) error
	UpdateReversal(ctx context.Context, reversal *models.PayoutReversal) error
	PendingReversalsForGarage(ctx context.Context, garageID uuid.UUID) ([]models.PayoutReversal, error)

	HasOpenDispute(ctx context.Context, orderID uuid.UUID) (bool, error)
	HasActiveRefund(ctx context.Context, orderID uuid.UUID) (bool, error)
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

func (r *gormRepository) Create(ctx context.Context, payout *models.GaragePayout) error {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating payout")
	}
	return nil
}

func (r *gormRepository) Update(ctx context.Context, payout *models.GaragePayout) error {
	if err := r.db.WithContext(ctx).Save(payout).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating payout")
	}
	return nil
}

func (r *gormRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
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

// FindDue lists pending payouts whose scheduled date has passed, oldest first.
func (r *gormRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.GaragePayout, error) {
	var payouts []models.GaragePayout
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", enums.PayoutStatusPending, now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing due payouts")
	}
	return payouts, nil
}

// FindConfirmable lists completed and awaiting-confirmation payouts past the
// confirmation window.
func (r *gormRepository) FindConfirmable(ctx context.Context, olderThan time.Time, limit int) ([]models.GaragePayout, error) {
	var payouts []models.GaragePayout
	err := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", []enums.PayoutStatus{
			enums.PayoutStatusCompleted,
			enums.PayoutStatusAwaitingConfirmation,
		}, olderThan).
		Order("completed_at ASC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing confirmable payouts")
	}
	return payouts, nil
}

func (r *gormRepository) CreateReversal(ctx context.Context, reversal *models.PayoutReversal) error {
	if err := r.db.WithContext(ctx).Create(reversal).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating payout reversal")
	}
	return nil
}

func (r *gormRepository) UpdateReversal(ctx context.Context, reversal *models.PayoutReversal) error {
	if err := r.db.WithContext(ctx).Save(reversal).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating payout reversal")
	}
	return nil
}

func (r *gormRepository) PendingReversalsForGarage(ctx context.Context, garageID uuid.UUID) ([]models.PayoutReversal, error) {
	var reversals []models.PayoutReversal
	err := r.db.WithContext(ctx).
		Where("garage_id = ? AND status = ?", garageID, enums.ReversalStatusPending).
		Order("created_at ASC").
		Find(&reversals).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing pending reversals")
	}
	return reversals, nil
}

func (r *gormRepository) HasOpenDispute(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("order_id = ? AND status = ?", orderID, enums.DisputeStatusOpen).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "counting open disputes")
	}
	return count > 0, nil
}

// HasActiveRefund reports whether a refund is processing or completed for the
// order. Such an order may never pay out.
func (r *gormRepository) HasActiveRefund(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.RefundStatus{
			enums.RefundStatusProcessing,
			enums.RefundStatusCompleted,
		}).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "counting active refunds")
	}
	return count > 0, nil
}
