package types

// SuccessEnvelope wraps read responses and plain successes.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the body of every non-escrow failure. RequestID echoes X-Request-Id when set.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
