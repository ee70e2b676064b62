package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// Dispute is a buyer-raised delivery dispute. Open disputes hold payouts; a
// refund-favoring resolution routes into the operator cancellation path.
type Dispute struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	OpenedBy          uuid.UUID           `gorm:"column:opened_by;type:uuid;not null"`
	Reason            string              `gorm:"column:reason;not null"`
	Status            enums.DisputeStatus `gorm:"column:status;type:dispute_status;not null;default:'open'"`
	GarageRespondedAt *time.Time          `gorm:"column:garage_responded_at"`
	ResolvedBy        *uuid.UUID          `gorm:"column:resolved_by;type:uuid"`
	Resolution        *string             `gorm:"column:resolution"`
	ResolvedAt        *time.Time          `gorm:"column:resolved_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
