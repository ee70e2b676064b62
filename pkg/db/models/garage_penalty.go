package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// GaragePenalty flags a garage for SLA breaches, damaged parts, or denied
// compensation claims. Feeds the garage fulfillment-rate aggregate.
type GaragePenalty struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GarageID  uuid.UUID         `gorm:"column:garage_id;type:uuid;not null;index"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Kind      enums.PenaltyKind `gorm:"column:kind;type:penalty_kind;not null"`
	Note      *string           `gorm:"column:note"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
