package enums

import "fmt"

// EventType discriminates processor webhook notifications.
type EventType string

const (
	EventTypePaymentApproved        EventType = "payment_approved"
	EventTypeCardVerified           EventType = "card_verified"
	EventTypePaymentCaptured        EventType = "payment_captured"
	EventTypePaymentCaptureDeclined EventType = "payment_capture_declined"
	EventTypePaymentVoided          EventType = "payment_voided"
	EventTypePaymentRefunded        EventType = "payment_refunded"
	EventTypePaymentCanceled        EventType = "payment_canceled"
	EventTypePaymentDeclined        EventType = "payment_declined"
	EventTypePaymentAuthFailed      EventType = "payment_authentication_failed"
)

var validEventTypes = []EventType{
	EventTypePaymentApproved,
	EventTypeCardVerified,
	EventTypePaymentCaptured,
	EventTypePaymentCaptureDeclined,
	EventTypePaymentVoided,
	EventTypePaymentRefunded,
	EventTypePaymentCanceled,
	EventTypePaymentDeclined,
	EventTypePaymentAuthFailed,
}

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventType.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts raw input into an EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
