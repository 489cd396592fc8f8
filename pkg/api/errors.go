package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypePayloadTooLarge ErrorType = "payload_too_large"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeServerError     ErrorType = "server_error"
)

// APIError is a request-level error. It serializes flat, as
// {"error": "...", "type": "...", "note": "..."}, which keeps the upload
// endpoint's historical {"error": "..."} contract.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"error"`
	Param   string    `json:"param,omitempty"`
	Note    string    `json:"note,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewInvalidRequestError creates an APIError for malformed requests.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewPayloadTooLargeError creates an APIError for uploads over maxBytes.
func NewPayloadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Type:    ErrorTypePayloadTooLarge,
		Message: "file too large",
		Note:    fmt.Sprintf("Maximum size: %s. Reduce the image or PDF and try again.", FormatSize(maxBytes)),
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// FormatSize renders a byte count in whole megabytes when it is one,
// otherwise in bytes.
func FormatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
