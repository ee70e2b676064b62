package refunds

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

// Repository persists refund rows and the order payment flip that follows a
// completed refund.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, refund *models.Refund) error
	Update(ctx context.Context, refund *models.Refund) error
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Refund, error)
	FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]models.Refund, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkOrderRefunded(ctx context.Context, orderID uuid.UUID) error
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

func (r *gormRepository) Create(ctx context.Context, refund *models.Refund) error {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating refund")
	}
	return nil
}

func (r *gormRepository) Update(ctx context.Context, refund *models.Refund) error {
	if err := r.db.WithContext(ctx).Save(refund).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating refund")
	}
	return nil
}

// FindActiveByOrder returns the order's non-failed refund, if any. The
// partial unique index guarantees at most one exists.
func (r *gormRepository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, enums.RefundStatusFailed).
		First(&refund).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "no active refund for order")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading refund")
	}
	return &refund, nil
}

// FindStuck returns refunds left in a non-terminal state by a crash: pending
// rows that never reached the gateway, and processing rows where the process
// died between the status flip and the gateway response.
func (r *gormRepository) FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]enums.RefundStatus{enums.RefundStatusPending, enums.RefundStatusProcessing}, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&refunds).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing stuck refunds")
	}
	return refunds, nil
}

func (r *gormRepository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	return &order, nil
}

func (r *gormRepository) MarkOrderRefunded(ctx context.Context, orderID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", enums.PaymentStatusRefunded).Error
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "marking order refunded")
	}
	return nil
}
