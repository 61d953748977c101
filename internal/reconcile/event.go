package reconcile

import (
	"strings"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
)

// Envelope is the wire shape of a processor webhook delivery.
type Envelope struct {
	Type string       `json:"type" validate:"required"`
	Data EnvelopeData `json:"data" validate:"required"`
}

type EnvelopeData struct {
	ID              string            `json:"id"`
	ActionID        string            `json:"action_id"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	ResponseSummary string            `json:"response_summary"`
	Metadata        map[string]string `json:"metadata"`
}

// Event is the engine's view of a single webhook delivery. It is built
// once per HTTP request and consumed once.
type Event struct {
	Type            enums.EventType
	PaymentID       string
	ActionID        string
	Amount          int64
	Currency        string
	ResponseSummary string
	OrderRef        string
}

// EventFromEnvelope converts a decoded delivery into an Event. An
// unrecognized type is not an error here; the classifier decides what
// to do with it.
func EventFromEnvelope(env *Envelope) (*Event, error) {
	if env == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event envelope required")
	}
	eventType := strings.TrimSpace(env.Type)
	if eventType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event type required")
	}

	return &Event{
		Type:            enums.EventType(eventType),
		PaymentID:       strings.TrimSpace(env.Data.ID),
		ActionID:        strings.TrimSpace(env.Data.ActionID),
		Amount:          env.Data.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(env.Data.Currency)),
		ResponseSummary: strings.TrimSpace(env.Data.ResponseSummary),
		OrderRef:        strings.TrimSpace(env.Data.Metadata["order_id"]),
	}, nil
}
