package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/gateway"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/metrics"
	"github.com/angelmondragon/paygate-backend/pkg/money"
)

type orderStore interface {
	FindOrder(ctx context.Context, ref string) (*models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order, status enums.OrderStatus) error
	UpdateMeta(ctx context.Context, order *models.Order, updates map[string]any) error
	SetTransactionID(ctx context.Context, order *models.Order, transactionID string) error
	AddNote(ctx context.Context, order *models.Order, note string) error
	CreateRefund(ctx context.Context, order *models.Order, refund *models.OrderRefund) error
}

type paymentLookup interface {
	GetPaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error)
}

type handlerFunc func(ctx context.Context, order *models.Order, event *Event) error

type ServiceParams struct {
	Orders  orderStore
	Gateway paymentLookup
	Targets config.ReconcileConfig
	Logger  *logger.Logger
	Metrics *metrics.WebhookMetrics
}

// Service applies processor webhook events to host order records. All
// mutation for one order is serialized behind a per-order lock so guard
// checks and writes behave as a single step even under concurrent
// redelivery.
type Service struct {
	orders   orderStore
	gateway  paymentLookup
	targets  config.ReconcileConfig
	logger   *logger.Logger
	metrics  *metrics.WebhookMetrics
	locks    *orderLocks
	handlers map[enums.EventType]handlerFunc
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order store required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment lookup client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}

	s := &Service{
		orders:  params.Orders,
		gateway: params.Gateway,
		targets: params.Targets,
		logger:  params.Logger,
		metrics: params.Metrics,
		locks:   newOrderLocks(),
	}
	s.handlers = map[enums.EventType]handlerFunc{
		enums.EventTypePaymentApproved:        s.handleAuthorize,
		enums.EventTypeCardVerified:           s.handleCardVerified,
		enums.EventTypePaymentCaptured:        s.handleCapture,
		enums.EventTypePaymentCaptureDeclined: s.handleCaptureDeclined,
		enums.EventTypePaymentVoided:          s.handleVoid,
		enums.EventTypePaymentRefunded:        s.handleRefund,
		enums.EventTypePaymentCanceled:        s.handleCancel,
		enums.EventTypePaymentDeclined:        s.handleDecline,
		enums.EventTypePaymentAuthFailed:      s.handleDecline,
	}
	return s, nil
}

// Process applies one webhook event end to end: classify, resolve the
// order, lock it, re-read it under the lock, then run the handler.
// Unrecognized event types are acknowledged and ignored.
func (s *Service) Process(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	ctx = s.logger.WithEventType(ctx, event.Type.String())
	if event.PaymentID != "" {
		ctx = s.logger.WithPaymentID(ctx, event.PaymentID)
	}

	handler, ok := s.handlers[event.Type]
	if !ok {
		s.logger.Info(ctx, "no handler for event type, ignoring")
		return nil
	}

	start := time.Now()
	err := s.apply(ctx, event, handler)
	s.metrics.ObserveDuration(event.Type.String(), time.Since(start))
	if err != nil {
		s.metrics.IncFailed(event.Type.String())
		return err
	}
	s.metrics.IncProcessed(event.Type.String())
	return nil
}

func (s *Service) apply(ctx context.Context, event *Event, handler handlerFunc) error {
	ref, err := s.resolveOrderRef(ctx, event)
	if err != nil {
		return err
	}

	order, err := s.orders.FindOrder(ctx, ref)
	if err != nil {
		s.logger.Error(ctx, "order lookup failed", err)
		return err
	}

	unlock := s.locks.Acquire(order.ID.String())
	defer unlock()

	// Re-read under the lock so the guards see writes from any delivery
	// that held the lock before us.
	order, err = s.orders.FindOrder(ctx, order.ID.String())
	if err != nil {
		return err
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	return handler(ctx, order, event)
}

// resolveOrderRef extracts the order reference from the event, except
// for cancellations, whose payloads carry only a payment id and require
// a remote lookup.
func (s *Service) resolveOrderRef(ctx context.Context, event *Event) (string, error) {
	if event.Type != enums.EventTypePaymentCanceled {
		if event.OrderRef == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "event metadata missing order reference")
		}
		return event.OrderRef, nil
	}

	if event.PaymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cancel event missing payment id")
	}
	details, err := s.gateway.GetPaymentDetails(ctx, event.PaymentID)
	if err != nil {
		s.logger.Error(ctx, "payment details lookup failed", err)
		return "", err
	}
	ref := details.OrderRef()
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment metadata missing order reference")
	}
	return ref, nil
}

func (s *Service) handleAuthorize(ctx context.Context, order *models.Order, event *Event) error {
	stopped, err := s.runGuards(ctx, order, event, s.terminalFailureGuard, s.ledgerGuard)
	if stopped || err != nil {
		return err
	}

	amount := money.FormatWithCurrency(event.Amount, event.Currency)

	// A capture already landed, or the order has otherwise moved past
	// authorization. Record the authorization without touching status.
	if order.MetaBool(models.MetaPaymentCaptured) || order.Status.IsAdvanced() {
		if err := s.recordAuthorization(ctx, order, event); err != nil {
			return err
		}
		note := fmt.Sprintf("Authorization webhook received after capture. Amount: %s. Transaction ID: %s.", amount, event.ActionID)
		return s.orders.AddNote(ctx, order, note)
	}

	if order.MetaBool(models.MetaPaymentAuthorized) && order.Status == s.targets.Authorized() {
		if err := s.orders.UpdateMeta(ctx, order, s.metaWithLedger(order, event, nil)); err != nil {
			return err
		}
		return s.orders.AddNote(ctx, order, "Payment authorization already recorded.")
	}

	if err := s.recordAuthorization(ctx, order, event); err != nil {
		return err
	}
	note := fmt.Sprintf("Payment authorized. Amount: %s. Transaction ID: %s.", amount, event.ActionID)
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, order, s.targets.Authorized())
}

func (s *Service) handleCardVerified(ctx context.Context, order *models.Order, event *Event) error {
	stopped, err := s.runGuards(ctx, order, event, s.terminalFailureGuard, s.ledgerGuard)
	if stopped || err != nil {
		return err
	}

	if err := s.orders.SetTransactionID(ctx, order, event.ActionID); err != nil {
		return err
	}
	if err := s.orders.UpdateMeta(ctx, order, s.metaWithLedger(order, event, nil)); err != nil {
		return err
	}
	note := fmt.Sprintf("Card verified. Transaction ID: %s.", event.ActionID)
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, order, s.targets.Captured())
}

func (s *Service) handleCapture(ctx context.Context, order *models.Order, event *Event) error {
	stopped, err := s.runGuards(ctx, order, event, s.terminalFailureGuard, s.ledgerGuard)
	if stopped || err != nil {
		return err
	}

	flags := map[string]any{}
	// Capture is proof of a prior authorization even when the authorize
	// webhook never arrived.
	if !order.MetaBool(models.MetaPaymentAuthorized) {
		flags[models.MetaPaymentAuthorized] = true
	}

	if order.MetaBool(models.MetaPaymentCaptured) {
		if err := s.orders.UpdateMeta(ctx, order, s.metaWithLedger(order, event, flags)); err != nil {
			return err
		}
		return s.orders.AddNote(ctx, order, "Payment capture already recorded.")
	}

	flags[models.MetaPaymentCaptured] = true
	if err := s.orders.SetTransactionID(ctx, order, event.ActionID); err != nil {
		return err
	}
	if err := s.orders.UpdateMeta(ctx, order, s.metaWithLedger(order, event, flags)); err != nil {
		return err
	}

	note := fmt.Sprintf("Payment captured (%s). Amount: %s. Transaction ID: %s.",
		classifyAmount(event.Amount, order.TotalCents),
		money.FormatWithCurrency(event.Amount, event.Currency),
		event.ActionID)
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, order, s.targets.Captured())
}

// handleCaptureDeclined only appends a note. The event carries no state
// transition, so redelivery is harmless.
func (s *Service) handleCaptureDeclined(ctx context.Context, order *models.Order, event *Event) error {
	reason := event.ResponseSummary
	if reason == "" {
		reason = "no reason provided"
	}
	note := fmt.Sprintf("Payment capture declined. Reason: %s.", reason)
	return s.orders.AddNote(ctx, order, note)
}

func (s *Service) handleVoid(ctx context.Context, order *models.Order, event *Event) error {
	stopped, err := s.runGuards(ctx, order, event,
		s.paymentIDMismatchGuard,
		s.terminalFailureGuard,
		s.ledgerGuard,
		s.flagNoOpGuard(models.MetaPaymentVoided, "Payment void already recorded."),
	)
	if stopped || err != nil {
		return err
	}

	if err := s.orders.SetTransactionID(ctx, order, event.ActionID); err != nil {
		return err
	}
	updates := s.metaWithLedger(order, event, map[string]any{models.MetaPaymentVoided: true})
	if err := s.orders.UpdateMeta(ctx, order, updates); err != nil {
		return err
	}
	note := fmt.Sprintf("Payment voided. Transaction ID: %s.", event.ActionID)
	if event.ResponseSummary != "" {
		note = fmt.Sprintf("Payment voided. Reason: %s. Transaction ID: %s.", event.ResponseSummary, event.ActionID)
	}
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, order, s.targets.Void())
}

func (s *Service) handleRefund(ctx context.Context, order *models.Order, event *Event) error {
	// Refunds dedupe on transaction id equality: a redelivered refund
	// carries the action id we already recorded as the transaction.
	if event.ActionID != "" && order.TransactionID == event.ActionID {
		s.logger.Info(ctx, "refund already applied, acknowledging")
		return nil
	}

	stopped, err := s.runGuards(ctx, order, event,
		s.paymentIDMismatchGuard,
		s.terminalFailureGuard,
		s.flagNoOpGuard(models.MetaPaymentRefunded, "Payment refund already recorded."),
	)
	if stopped || err != nil {
		return err
	}

	if order.TotalRefundedCents >= order.TotalCents {
		return s.orders.AddNote(ctx, order, "Refund webhook received but order is already fully refunded.")
	}

	remaining := order.TotalCents - order.TotalRefundedCents
	if event.Amount > remaining {
		s.logger.Warn(ctx, "refund amount exceeds refundable balance")
		note := fmt.Sprintf("Refund of %s exceeds refundable balance of %s. No refund applied.",
			money.FormatWithCurrency(event.Amount, event.Currency),
			money.FormatWithCurrency(remaining, order.Currency))
		return s.orders.AddNote(ctx, order, note)
	}

	if err := s.orders.SetTransactionID(ctx, order, event.ActionID); err != nil {
		return err
	}
	updates := s.metaWithLedger(order, event, map[string]any{models.MetaPaymentRefunded: true})
	if err := s.orders.UpdateMeta(ctx, order, updates); err != nil {
		return err
	}

	classification := classifyAmount(event.Amount, order.TotalCents)
	refund := &models.OrderRefund{
		AmountCents: event.Amount,
		Currency:    order.Currency,
		Reason:      fmt.Sprintf("Processor refund webhook (%s). Transaction ID: %s.", classification, event.ActionID),
	}
	if err := s.orders.CreateRefund(ctx, order, refund); err != nil {
		return err
	}

	note := fmt.Sprintf("Payment refunded (%s). Amount: %s. Transaction ID: %s.",
		classification, money.FormatWithCurrency(event.Amount, event.Currency), event.ActionID)
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return err
	}

	if order.TotalRefundedCents >= order.TotalCents {
		return s.orders.UpdateStatus(ctx, order, enums.OrderStatusRefunded)
	}
	return nil
}

// handleCancel re-applies the cancelled state on every delivery. The
// order was resolved via the remote payment lookup before dispatch.
func (s *Service) handleCancel(ctx context.Context, order *models.Order, event *Event) error {
	if stop, err := s.paymentIDMismatchGuard(ctx, order, event); stop || err != nil {
		return err
	}

	note := fmt.Sprintf("Payment canceled by processor. Payment ID: %s.", event.PaymentID)
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, order, enums.OrderStatusCancelled)
}

// handleDecline parks the order in the failed state. Repeated delivery
// re-sets the same terminal state and re-appends a note.
func (s *Service) handleDecline(ctx context.Context, order *models.Order, event *Event) error {
	if stop, err := s.paymentIDMismatchGuard(ctx, order, event); stop || err != nil {
		return err
	}

	reason := event.ResponseSummary
	if reason == "" && event.Amount > 0 {
		reason = fmt.Sprintf("declined amount %s", money.FormatWithCurrency(event.Amount, event.Currency))
	}
	if reason == "" {
		reason = "no reason provided"
	}
	note := fmt.Sprintf("Payment declined. Reason: %s.", reason)
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, order, enums.OrderStatusFailed)
}

// recordAuthorization writes the transaction id and authorization flags
// without touching order status.
func (s *Service) recordAuthorization(ctx context.Context, order *models.Order, event *Event) error {
	if err := s.orders.SetTransactionID(ctx, order, event.ActionID); err != nil {
		return err
	}
	updates := s.metaWithLedger(order, event, map[string]any{models.MetaPaymentAuthorized: true})
	return s.orders.UpdateMeta(ctx, order, updates)
}

// metaWithLedger merges handler flags with the payment id and the
// advanced idempotency ledger into one metadata write.
func (s *Service) metaWithLedger(order *models.Order, event *Event, flags map[string]any) map[string]any {
	updates := map[string]any{}
	for key, value := range flags {
		updates[key] = value
	}
	if event.PaymentID != "" {
		updates[models.MetaPaymentID] = event.PaymentID
	}
	if event.ActionID != "" {
		updates[models.MetaProcessedActionIDs] = ledgerWith(order, event.ActionID)
	}
	return updates
}

// classifyAmount labels a capture or refund against the order total.
// Amounts at or above the total are full, never partial.
func classifyAmount(amount, totalCents int64) string {
	if amount < totalCents {
		return "partial"
	}
	return "full"
}
