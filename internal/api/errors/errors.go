package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	bridgeerrors "github.com/nkkko/textai/internal/errors"
)

// ErrorType defines the type of error
type ErrorType string

const (
	// ErrorTypeValidation represents a malformed request
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNotFound represents an unknown menu item, accelerator or document
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict represents a second window trying to attach
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeUnavailable represents an operation that needs a window when none is open
	ErrorTypeUnavailable ErrorType = "unavailable"

	// ErrorTypeInternal represents an internal server error
	ErrorTypeInternal ErrorType = "internal"
)

// APIError represents a standardized API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	HTTPCode  int       `json:"-"` // Not serialized
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Code, e.Message)
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

// ValidationError creates a new validation error
func ValidationError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeValidation,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeNotFound,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusNotFound,
	}
}

// ConflictError creates a new conflict error
func ConflictError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeConflict,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusConflict,
	}
}

// UnavailableError creates a new service unavailable error
func UnavailableError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeUnavailable,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusServiceUnavailable,
	}
}

// InternalError creates a new internal server error
func InternalError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeInternal,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusInternalServerError,
	}
}

// FromError creates a new API error from a Go error. Bridge errors keep
// their code and map to the closest HTTP status.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var bridgeErr *bridgeerrors.BridgeError
	if stderrors.As(err, &bridgeErr) {
		switch bridgeErr.Type {
		case bridgeerrors.ErrorTypeProtocol:
			return NotFoundError(bridgeErr.Code, bridgeErr.Message)
		case bridgeerrors.ErrorTypeUnavailable:
			if bridgeErr.Code == "window_open" {
				return ConflictError(bridgeErr.Code, bridgeErr.Message)
			}
			return UnavailableError(bridgeErr.Code, bridgeErr.Message)
		default:
			return InternalError(bridgeErr.Code, bridgeErr.Message)
		}
	}

	return InternalError("internal_error", err.Error())
}
