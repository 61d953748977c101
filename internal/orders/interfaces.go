package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
)

// Repository defines persistence operations against host order records.
// The reconciliation engine only mutates existing rows; it never creates
// or deletes orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, ref string) (*models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order, status enums.OrderStatus) error
	UpdateMeta(ctx context.Context, order *models.Order, updates map[string]any) error
	SetTransactionID(ctx context.Context, order *models.Order, transactionID string) error
	AddNote(ctx context.Context, order *models.Order, note string) error
	CreateRefund(ctx context.Context, order *models.Order, refund *models.OrderRefund) error
}
