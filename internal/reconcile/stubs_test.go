package reconcile

import (
	"context"
	"errors"
	"io"
	"maps"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/gateway"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/types"
)

// stubOrderStore keeps orders in memory and mimics the repository's
// merge and running-total behavior.
type stubOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
	notes  map[uuid.UUID][]string
}

func newStubOrderStore(orders ...*models.Order) *stubOrderStore {
	store := &stubOrderStore{
		orders: map[uuid.UUID]*models.Order{},
		notes:  map[uuid.UUID][]string{},
	}
	for _, order := range orders {
		store.orders[order.ID] = order
	}
	return store
}

func (s *stubOrderStore) FindOrder(ctx context.Context, ref string) (*models.Order, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if order, ok := s.orders[id]; ok {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if number, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, order := range s.orders {
			if order.OrderNumber == number {
				return order, nil
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference must be a uuid or order number")
}

func (s *stubOrderStore) UpdateStatus(ctx context.Context, order *models.Order, status enums.OrderStatus) error {
	order.Status = status
	return nil
}

func (s *stubOrderStore) UpdateMeta(ctx context.Context, order *models.Order, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	merged := types.JSONMap{}
	maps.Copy(merged, order.Metadata)
	maps.Copy(merged, updates)
	order.Metadata = merged
	return nil
}

func (s *stubOrderStore) SetTransactionID(ctx context.Context, order *models.Order, transactionID string) error {
	order.TransactionID = transactionID
	return nil
}

func (s *stubOrderStore) AddNote(ctx context.Context, order *models.Order, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[order.ID] = append(s.notes[order.ID], note)
	return nil
}

func (s *stubOrderStore) CreateRefund(ctx context.Context, order *models.Order, refund *models.OrderRefund) error {
	refund.OrderID = order.ID
	order.Refunds = append(order.Refunds, *refund)
	order.TotalRefundedCents += refund.AmountCents
	return nil
}

func (s *stubOrderStore) notesFor(order *models.Order) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes[order.ID]
}

type stubLookup struct {
	details *gateway.PaymentDetails
	err     error
	calls   int
}

func (s *stubLookup) GetPaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.details == nil {
		return nil, errors.New("no payment configured")
	}
	return s.details, nil
}

func testTargets() config.ReconcileConfig {
	return config.ReconcileConfig{
		AuthorizedStatus: "on_hold",
		CapturedStatus:   "processing",
		VoidStatus:       "cancelled",
	}
}

func newTestService(t *testing.T, store *stubOrderStore, lookup *stubLookup) *Service {
	t.Helper()

	if lookup == nil {
		lookup = &stubLookup{}
	}
	service, err := NewService(ServiceParams{
		Orders:  store,
		Gateway: lookup,
		Targets: testTargets(),
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func testOrder(status enums.OrderStatus, totalCents int64) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: 1001,
		Status:      status,
		Currency:    "USD",
		TotalCents:  totalCents,
		Metadata:    types.JSONMap{},
	}
}
