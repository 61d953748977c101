package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/angelmondragon/paygate-backend/pkg/types"
)

// Metadata keys the payment engine reads and writes on orders.
const (
	MetaPaymentID          = "payment_id"
	MetaPaymentAuthorized  = "payment_authorized"
	MetaPaymentCaptured    = "payment_captured"
	MetaPaymentVoided      = "payment_voided"
	MetaPaymentRefunded    = "payment_refunded"
	MetaProcessedActionIDs = "processed_action_ids"
)

// Order is the host order record the payment engine reconciles against.
// The engine never creates or destroys rows, it only mutates status,
// metadata, transaction id and notes.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        int64             `gorm:"column:order_number;not null;uniqueIndex"`
	Status             enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency           string            `gorm:"column:currency;type:text;not null;default:'USD'"`
	TotalCents         int64             `gorm:"column:total_cents;not null"`
	TotalRefundedCents int64             `gorm:"column:total_refunded_cents;not null;default:0"`
	TransactionID      string            `gorm:"column:transaction_id;type:text;not null;default:''"`
	Metadata           types.JSONMap     `gorm:"column:metadata;type:jsonb;serializer:json"`
	Notes              []OrderNote       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Refunds            []OrderRefund     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// MetaBool reads a boolean metadata flag; absent keys read false.
func (o *Order) MetaBool(key string) bool {
	if o == nil || o.Metadata == nil {
		return false
	}
	if v, ok := o.Metadata[key].(bool); ok {
		return v
	}
	return false
}

// MetaString reads a string metadata value; absent keys read "".
func (o *Order) MetaString(key string) string {
	if o == nil || o.Metadata == nil {
		return ""
	}
	if v, ok := o.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// ProcessedActionIDs returns the idempotency ledger stored in metadata.
// The jsonb round-trip yields []any, so both shapes are accepted.
func (o *Order) ProcessedActionIDs() []string {
	if o == nil || o.Metadata == nil {
		return nil
	}
	switch raw := o.Metadata[MetaProcessedActionIDs].(type) {
	case []string:
		return raw
	case []any:
		ids := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	default:
		return nil
	}
}
