package cancellation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/partdash/partdash-backend/pkg/db/models"
	"github.com/partdash/partdash-backend/pkg/enums"
	"github.com/partdash/partdash-backend/pkg/errors"
)

func setupCancellationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL,
  customer_id TEXT NOT NULL,
  garage_id TEXT NOT NULL,
  courier_id TEXT,
  status TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  payment_ref TEXT,
  currency TEXT NOT NULL DEFAULT 'QAR',
  part_price_minor INTEGER NOT NULL,
  delivery_fee_minor INTEGER NOT NULL DEFAULT 0,
  total_minor INTEGER NOT NULL,
  part_description TEXT,
  confirmed_at DATETIME,
  delivered_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`
CREATE TABLE IF NOT EXISTS cancellation_requests (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  requested_by TEXT NOT NULL,
  requested_by_type TEXT NOT NULL,
  reason TEXT NOT NULL,
  reason_code TEXT,
  stage TEXT NOT NULL,
  fault_party TEXT NOT NULL DEFAULT 'none',
  minutes_since_order INTEGER NOT NULL,
  fee_rate TEXT NOT NULL,
  fee_minor INTEGER NOT NULL,
  delivery_fee_retained_minor INTEGER NOT NULL DEFAULT 0,
  refund_minor INTEGER NOT NULL,
  first_free_applied INTEGER NOT NULL DEFAULT 0,
  compensation_status TEXT NOT NULL DEFAULT 'none',
  created_at DATETIME
);`,
		`
CREATE TABLE IF NOT EXISTS order_status_history (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  changed_by TEXT,
  changed_by_type TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`,
		`
CREATE TABLE IF NOT EXISTS garage_penalties (
  id TEXT PRIMARY KEY,
  garage_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`,
		`
CREATE TABLE IF NOT EXISTS garage_stats (
  garage_id TEXT PRIMARY KEY,
  completed_orders INTEGER NOT NULL DEFAULT 0,
  cancelled_orders INTEGER NOT NULL DEFAULT 0,
  fulfillment_rate REAL NOT NULL DEFAULT 1,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func insertTestOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    time.Now().UnixNano(),
		CustomerID:     uuid.New(),
		GarageID:       uuid.New(),
		Status:         status,
		PaymentStatus:  enums.PaymentStatusPaid,
		Currency:       "QAR",
		PartPriceMinor: 50000,
		TotalMinor:     50000,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepository_FindOrderForUpdate(t *testing.T) {
	db := setupCancellationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := insertTestOrder(t, db, enums.OrderStatusPreparing)

	found, err := repo.FindOrderForUpdate(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, enums.OrderStatusPreparing, found.Status)

	_, err = repo.FindOrderForUpdate(ctx, uuid.New())
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestRepository_CountCustomerCancellations(t *testing.T) {
	db := setupCancellationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	count, err := repo.CountCustomerCancellations(ctx, customerID)
	require.NoError(t, err)
	assert.Zero(t, count)

	request := &models.CancellationRequest{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		RequestedBy:     customerID,
		RequestedByType: enums.ActorCustomer,
		Reason:          "changed my mind",
		Stage:           enums.StageAfterPayment,
		FaultParty:      enums.FaultCustomer,
		FeeRate:         "0.0500",
		FeeMinor:        2500,
		RefundMinor:     47500,
	}
	require.NoError(t, repo.CreateRequest(ctx, request))

	// Garage-initiated rows never count against the customer.
	garageRow := &models.CancellationRequest{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		RequestedBy:     customerID,
		RequestedByType: enums.ActorGarage,
		Reason:          "out of stock",
		Stage:           enums.StageAfterPayment,
		FaultParty:      enums.FaultGarage,
		FeeRate:         "0.0000",
		RefundMinor:     50000,
	}
	require.NoError(t, repo.CreateRequest(ctx, garageRow))

	count, err = repo.CountCustomerCancellations(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_LatestRequestForOrder(t *testing.T) {
	db := setupCancellationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	_, err := repo.LatestRequestForOrder(ctx, orderID)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	older := &models.CancellationRequest{
		ID:              uuid.New(),
		OrderID:         orderID,
		RequestedBy:     uuid.New(),
		RequestedByType: enums.ActorCustomer,
		Reason:          "first attempt",
		Stage:           enums.StageAfterPayment,
		FaultParty:      enums.FaultCustomer,
		FeeRate:         "0.0500",
		CreatedAt:       time.Now().Add(-time.Hour),
	}
	newer := &models.CancellationRequest{
		ID:              uuid.New(),
		OrderID:         orderID,
		RequestedBy:     uuid.New(),
		RequestedByType: enums.ActorOperator,
		Reason:          "operator remediation",
		Stage:           enums.StageAlreadyCancelled,
		FaultParty:      enums.FaultPlatform,
		FeeRate:         "0.0000",
		CreatedAt:       time.Now(),
	}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)

	latest, err := repo.LatestRequestForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
}

func TestRepository_RecalcGarageStats(t *testing.T) {
	db := setupCancellationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	garageID := uuid.New()
	for range 3 {
		order := insertTestOrder(t, db, enums.OrderStatusCompleted)
		require.NoError(t, db.Model(order).Update("garage_id", garageID).Error)
	}
	order := insertTestOrder(t, db, enums.OrderStatusCancelledByGarage)
	require.NoError(t, db.Model(order).Update("garage_id", garageID).Error)

	require.NoError(t, repo.RecalcGarageStats(ctx, garageID))

	var stats models.GarageStats
	require.NoError(t, db.Where("garage_id = ?", garageID).First(&stats).Error)
	assert.Equal(t, int64(3), stats.CompletedOrders)
	assert.Equal(t, int64(1), stats.CancelledOrders)
	assert.InDelta(t, 0.75, stats.FulfillmentRate, 0.0001)

	// Re-running is idempotent.
	require.NoError(t, repo.RecalcGarageStats(ctx, garageID))
	var rows int64
	require.NoError(t, db.Model(&models.GarageStats{}).Where("garage_id = ?", garageID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}
