package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// GaragePayout is the per-order payout owed to a garage after completion.
type GaragePayout struct {
	ID                         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GarageID                   uuid.UUID          `gorm:"column:garage_id;type:uuid;not null;index"`
	OrderID                    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	GrossMinor                 int64              `gorm:"column:gross_minor;not null"`
	CommissionMinor            int64              `gorm:"column:commission_minor;not null"`
	NetMinor                   int64              `gorm:"column:net_minor;not null"`
	Status                     enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	ScheduledFor               time.Time          `gorm:"column:scheduled_for;not null"`
	PotentialCompensationMinor int64              `gorm:"column:potential_compensation_minor;not null;default:0"`
	CompensationReason         *string            `gorm:"column:compensation_reason"`
	HeldReason                 *string            `gorm:"column:held_reason"`
	ConfirmedAt                *time.Time         `gorm:"column:confirmed_at"`
	CompletedAt                *time.Time         `gorm:"column:completed_at"`
	CreatedAt                  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
