package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
)

// SweepRepository holds the order-selection queries the sweep jobs run.
// Every query is bounded and oldest-first so a backlog drains across cycles
// instead of starving one.
type SweepRepository interface {
	FindOrphanOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	FindPreparingSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	FindUnconfirmedDeliveries(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	FindCompletedWithoutPayout(ctx context.Context, limit int) ([]models.Order, error)
	MarkOrderCompleted(ctx context.Context, orderID uuid.UUID, completedAt time.Time) error
}

type gormSweepRepository struct {
	db *gorm.DB
}

// NewSweepRepository builds the gorm-backed sweep queries.
func NewSweepRepository(db *gorm.DB) SweepRepository {
	return &gormSweepRepository{db: db}
}

func (r *gormSweepRepository) FindOrphanOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingPayment, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("find orphan orders: %w", err)
	}
	return orders, nil
}

func (r *gormSweepRepository) FindPreparingSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.OrderStatusPreparing, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("find stalled preparing orders: %w", err)
	}
	return orders, nil
}

func (r *gormSweepRepository) FindUnconfirmedDeliveries(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND delivered_at IS NOT NULL AND delivered_at < ?", enums.OrderStatusDelivered, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM disputes d WHERE d.order_id = orders.id AND d.status = ?)", enums.DisputeStatusOpen).
		Order("delivered_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("find unconfirmed deliveries: %w", err)
	}
	return orders, nil
}

func (r *gormSweepRepository) FindCompletedWithoutPayout(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND completed_at IS NOT NULL", enums.OrderStatusCompleted).
		Where("NOT EXISTS (SELECT 1 FROM garage_payouts p WHERE p.order_id = orders.id)").
		Order("completed_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("find completed orders without payout: %w", err)
	}
	return orders, nil
}

func (r *gormSweepRepository) MarkOrderCompleted(ctx context.Context, orderID uuid.UUID, completedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusDelivered).
		Updates(map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": completedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("mark order completed: %w", err)
	}
	return nil
}
