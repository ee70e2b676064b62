package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partdash/partdash-backend/pkg/enums"
)

// OrderStatusHistory records every order status transition.
type OrderStatusHistory struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus    enums.OrderStatus `gorm:"column:from_status;type:order_status;not null"`
	ToStatus      enums.OrderStatus `gorm:"column:to_status;type:order_status;not null"`
	ChangedBy     *uuid.UUID        `gorm:"column:changed_by;type:uuid"`
	ChangedByType enums.ActorType   `gorm:"column:changed_by_type;type:actor_type;not null"`
	Note          *string           `gorm:"column:note"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}
