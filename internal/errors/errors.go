package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/nkkko/textai/pkg/proto"
)

// ErrorType defines the category of a bridge failure
type ErrorType string

const (
	// ErrorTypeIO represents a read or write failure on disk
	ErrorTypeIO ErrorType = "io"

	// ErrorTypeUnsupported represents a privileged operation invoked without a host
	ErrorTypeUnsupported ErrorType = "unsupported_operation"

	// ErrorTypeUpstream represents a failure of the text-transform collaborator
	ErrorTypeUpstream ErrorType = "upstream_processing"

	// ErrorTypeProtocol represents a message that violates the channel contract
	ErrorTypeProtocol ErrorType = "protocol"

	// ErrorTypeUnavailable represents a missing peer (no window, closed transport)
	ErrorTypeUnavailable ErrorType = "unavailable"

	// ErrorTypeInternal represents anything else
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is checks. Matching is by Type only.
var (
	ErrIO          = &BridgeError{Type: ErrorTypeIO}
	ErrUnsupported = &BridgeError{Type: ErrorTypeUnsupported}
	ErrUpstream    = &BridgeError{Type: ErrorTypeUpstream}
	ErrProtocol    = &BridgeError{Type: ErrorTypeProtocol}
	ErrUnavailable = &BridgeError{Type: ErrorTypeUnavailable}
	ErrInternal    = &BridgeError{Type: ErrorTypeInternal}
)

// BridgeError represents a standardized bridge error
type BridgeError struct {
	Type    ErrorType
	Code    string
	Message string
	Channel string
	cause   error
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", e.Type, e.Code, e.Channel, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Code, e.Message)
}

// Is matches any BridgeError of the same type
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Unwrap returns the underlying cause, if any
func (e *BridgeError) Unwrap() error {
	return e.cause
}

// WithChannel records the channel the error occurred on
func (e *BridgeError) WithChannel(channel string) *BridgeError {
	e.Channel = channel
	return e
}

// WithCause attaches the underlying error
func (e *BridgeError) WithCause(err error) *BridgeError {
	e.cause = err
	return e
}

// IOError creates a new disk I/O error
func IOError(code string, message string) *BridgeError {
	return &BridgeError{Type: ErrorTypeIO, Code: code, Message: message}
}

// UnsupportedError creates a new unsupported operation error
func UnsupportedError(code string, message string) *BridgeError {
	return &BridgeError{Type: ErrorTypeUnsupported, Code: code, Message: message}
}

// UpstreamError creates a new upstream processing error
func UpstreamError(code string, message string) *BridgeError {
	return &BridgeError{Type: ErrorTypeUpstream, Code: code, Message: message}
}

// ProtocolError creates a new contract violation error
func ProtocolError(code string, message string) *BridgeError {
	return &BridgeError{Type: ErrorTypeProtocol, Code: code, Message: message}
}

// UnavailableError creates a new peer unavailable error
func UnavailableError(code string, message string) *BridgeError {
	return &BridgeError{Type: ErrorTypeUnavailable, Code: code, Message: message}
}

// InternalError creates a new internal error
func InternalError(code string, message string) *BridgeError {
	return &BridgeError{Type: ErrorTypeInternal, Code: code, Message: message}
}

// FromError creates a BridgeError from a Go error
func FromError(err error) *BridgeError {
	if err == nil {
		return nil
	}

	var bridgeErr *BridgeError
	if stderrors.As(err, &bridgeErr) {
		return bridgeErr
	}

	return InternalError("internal_error", err.Error()).WithCause(err)
}

// ToProto converts an error into its wire form
func ToProto(err error) *proto.Error {
	if err == nil {
		return nil
	}
	bridgeErr := FromError(err)
	return &proto.Error{
		Type:    string(bridgeErr.Type),
		Code:    bridgeErr.Code,
		Message: bridgeErr.Message,
	}
}

// FromProto rebuilds a BridgeError received over the wire
func FromProto(e *proto.Error, channel string) *BridgeError {
	if e == nil {
		return nil
	}
	errType := ErrorType(e.Type)
	switch errType {
	case ErrorTypeIO, ErrorTypeUnsupported, ErrorTypeUpstream,
		ErrorTypeProtocol, ErrorTypeUnavailable, ErrorTypeInternal:
	default:
		errType = ErrorTypeInternal
	}
	return &BridgeError{
		Type:    errType,
		Code:    e.Code,
		Message: e.Message,
		Channel: channel,
	}
}
