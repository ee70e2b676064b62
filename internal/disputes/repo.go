package disputes

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

// Repository persists delivery disputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, dispute *models.Dispute) error
	Update(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	FindStale(ctx context.Context, olderThan time.Time, limit int) ([]models.Dispute, error)

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
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

func (r *gormRepository) Create(ctx context.Context, dispute *models.Dispute) error {
	if err := r.db.WithContext(ctx).Create(dispute).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating dispute")
	}
	return nil
}

func (r *gormRepository) Update(ctx context.Context, dispute *models.Dispute) error {
	if err := r.db.WithContext(ctx).Save(dispute).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating dispute")
	}
	return nil
}

func (r *gormRepository) FindByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).Where("id = ?", disputeID).First(&dispute).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "dispute not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading dispute")
	}
	return &dispute, nil
}

func (r *gormRepository) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.DisputeStatusOpen).
		First(&dispute).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "no open dispute for order")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading dispute")
	}
	return &dispute, nil
}

// FindStale lists open disputes past the response window with no garage
// answer, oldest first.
func (r *gormRepository) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Where("status = ? AND garage_responded_at IS NULL AND created_at < ?", enums.DisputeStatusOpen, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&disputes).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing stale disputes")
	}
	return disputes, nil
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

func (r *gormRepository) SetOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating order status")
	}
	return nil
}
