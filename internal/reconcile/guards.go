package reconcile

import (
	"context"
	"fmt"

	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
)

// guard is one short-circuit predicate in a handler's chain. Returning
// stop=true ends the handler successfully without further mutation.
// Guards run in a fixed order: terminal failure, then idempotency, then
// handler-specific checks.
type guard func(ctx context.Context, order *models.Order, event *Event) (stop bool, err error)

func (s *Service) runGuards(ctx context.Context, order *models.Order, event *Event, guards ...guard) (bool, error) {
	for _, check := range guards {
		stop, err := check(ctx, order, event)
		if err != nil {
			return false, err
		}
		if stop {
			return true, nil
		}
	}
	return false, nil
}

// terminalFailureGuard keeps failed orders failed. The delivery is
// acknowledged with a note so the trail shows it arrived.
func (s *Service) terminalFailureGuard(ctx context.Context, order *models.Order, event *Event) (bool, error) {
	if order.Status != enums.OrderStatusFailed {
		return false, nil
	}
	note := fmt.Sprintf("Webhook %s ignored. Order is in a failed state.", event.Type)
	if err := s.orders.AddNote(ctx, order, note); err != nil {
		return false, err
	}
	s.logger.Info(s.logger.WithOrderID(ctx, order.ID.String()), "event ignored for failed order")
	return true, nil
}

// ledgerGuard suppresses redelivered actions. Duplicates are silent
// no-ops so the processor's retry loop settles without extra noise.
func (s *Service) ledgerGuard(ctx context.Context, order *models.Order, event *Event) (bool, error) {
	if !alreadyProcessed(order, event.ActionID) {
		return false, nil
	}
	s.logger.Info(s.logger.WithOrderID(ctx, order.ID.String()), "duplicate action acknowledged")
	return true, nil
}

// paymentIDMismatchGuard rejects deliveries whose payment id does not
// match the payment recorded on the order. A mismatch means the event
// was routed to the wrong order and must not mutate it.
func (s *Service) paymentIDMismatchGuard(ctx context.Context, order *models.Order, event *Event) (bool, error) {
	recorded := order.MetaString(models.MetaPaymentID)
	if recorded == "" || event.PaymentID == "" || recorded == event.PaymentID {
		return false, nil
	}
	s.logger.Warn(s.logger.WithOrderID(ctx, order.ID.String()), "payment id mismatch, rejecting event")
	return false, pkgerrors.New(pkgerrors.CodeConflict, "event payment id does not match order")
}

// flagNoOpGuard short-circuits when the given metadata flag is already
// set, appending a note describing the repeat delivery.
func (s *Service) flagNoOpGuard(flag, note string) guard {
	return func(ctx context.Context, order *models.Order, event *Event) (bool, error) {
		if !order.MetaBool(flag) {
			return false, nil
		}
		if err := s.orders.AddNote(ctx, order, note); err != nil {
			return false, err
		}
		return true, nil
	}
}
