package types

// SuccessEnvelope wraps every 2xx response body. Webhook acknowledgments
// carry a nil Data.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Message is the code's sanitized
// public text, never the internal error string.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx response body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
