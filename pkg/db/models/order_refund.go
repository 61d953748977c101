package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderRefund records a refund applied to an order. The host store keeps
// the order's running refunded total in sync as rows are created.
type OrderRefund struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents int64     `gorm:"column:amount_cents;not null"`
	Currency    string    `gorm:"column:currency;type:text;not null"`
	Reason      string    `gorm:"column:reason;type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
