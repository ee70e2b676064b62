package cancellation

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

// Repository is the persistence surface the orchestrator works against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	CountCustomerCancellations(ctx context.Context, customerID uuid.UUID) (int64, error)
	CreateRequest(ctx context.Context, request *models.CancellationRequest) error
	LatestRequestForOrder(ctx context.Context, orderID uuid.UUID) (*models.CancellationRequest, error)
	CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	CreatePenalty(ctx context.Context, penalty *models.GaragePenalty) error
	RecalcGarageStats(ctx context.Context, garageID uuid.UUID) error
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

// FindOrderForUpdate loads the order under a row lock. Concurrent
// cancellations of the same order serialize here.
func (r *gormRepository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := r.db.WithContext(ctx)
	// sqlite (tests) has no row locks; the whole db serializes writes anyway.
	if query.Dialector != nil && query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	err := query.Where("id = ?", orderID).First(&order).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	return &order, nil
}

func (r *gormRepository) SaveOrder(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "updating order")
	}
	return nil
}

func (r *gormRepository) CountCustomerCancellations(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CancellationRequest{}).
		Where("requested_by = ? AND requested_by_type = ?", customerID, enums.ActorCustomer).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "counting prior cancellations")
	}
	return count, nil
}

func (r *gormRepository) CreateRequest(ctx context.Context, request *models.CancellationRequest) error {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating cancellation request")
	}
	return nil
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

func (r *gormRepository) CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating status history")
	}
	return nil
}

func (r *gormRepository) CreatePenalty(ctx context.Context, penalty *models.GaragePenalty) error {
	if err := r.db.WithContext(ctx).Create(penalty).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "creating garage penalty")
	}
	return nil
}

// RecalcGarageStats recomputes the garage fulfillment aggregate from the
// orders table and upserts it.
func (r *gormRepository) RecalcGarageStats(ctx context.Context, garageID uuid.UUID) error {
	var completed, cancelled int64
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Order{}).
		Where("garage_id = ? AND status = ?", garageID, enums.OrderStatusCompleted).
		Count(&completed).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "counting completed orders")
	}
	if err := db.Model(&models.Order{}).
		Where("garage_id = ? AND status IN ?", garageID, []enums.OrderStatus{
			enums.OrderStatusCancelledByGarage,
			enums.OrderStatusCancelledByOperator,
		}).
		Count(&cancelled).Error; err != nil {
		return errors.Wrap(errors.CodeInternal, err, "counting cancelled orders")
	}

	rate := 1.0
	if completed+cancelled > 0 {
		rate = float64(completed) / float64(completed+cancelled)
	}

	stats := models.GarageStats{
		GarageID:        garageID,
		CompletedOrders: completed,
		CancelledOrders: cancelled,
		FulfillmentRate: rate,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "garage_id"}},
		UpdateAll: true,
	}).Create(&stats).Error
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "upserting garage stats")
	}
	return nil
}
