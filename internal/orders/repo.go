package orders

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/types"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindOrder resolves an order by reference. Processor metadata may carry
// either the order's UUID or the human-facing order number, so both are
// accepted.
func (r *repository) FindOrder(ctx context.Context, ref string) (*models.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference required")
	}

	query := r.db.WithContext(ctx).Preload("Refunds")
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else if number, err := strconv.ParseInt(ref, 10, 64); err == nil {
		query = query.Where("order_number = ?", number)
	} else {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference must be a uuid or order number")
	}

	var order models.Order
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, order *models.Order, status enums.OrderStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", status).Error
	if err != nil {
		return err
	}
	order.Status = status
	return nil
}

// UpdateMeta merges the given keys into the order's metadata document and
// persists the whole document. The in-memory order is kept in sync.
func (r *repository) UpdateMeta(ctx context.Context, order *models.Order, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	merged := types.JSONMap{}
	maps.Copy(merged, order.Metadata)
	maps.Copy(merged, updates)

	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("metadata", merged).Error
	if err != nil {
		return err
	}
	order.Metadata = merged
	return nil
}

func (r *repository) SetTransactionID(ctx context.Context, order *models.Order, transactionID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("transaction_id", transactionID).Error
	if err != nil {
		return err
	}
	order.TransactionID = transactionID
	return nil
}

func (r *repository) AddNote(ctx context.Context, order *models.Order, note string) error {
	row := models.OrderNote{
		ID:      uuid.New(),
		OrderID: order.ID,
		Note:    note,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	order.Notes = append(order.Notes, row)
	return nil
}

// CreateRefund inserts the refund row and advances the order's running
// refunded total in the same transaction.
func (r *repository) CreateRefund(ctx context.Context, order *models.Order, refund *models.OrderRefund) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	refund.OrderID = order.ID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(refund).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Update("total_refunded_cents", gorm.Expr("total_refunded_cents + ?", refund.AmountCents)).Error
	})
	if err != nil {
		return err
	}

	order.Refunds = append(order.Refunds, *refund)
	order.TotalRefundedCents += refund.AmountCents
	return nil
}
