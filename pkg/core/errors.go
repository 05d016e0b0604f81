package core

import (
	"errors"
	"fmt"
)

// Error represents a session engine error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Code    string    `json:"code,omitempty"`

	wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrSessionAlreadyActive   ErrorType = "session_already_active"
	ErrSessionNotReady        ErrorType = "session_not_ready"
	ErrTransportConnectFailed ErrorType = "transport_connect_failed"
	ErrMalformedDataPacket    ErrorType = "malformed_data_packet"
	ErrInvalidState           ErrorType = "invalid_state"
	ErrInvalidConfig          ErrorType = "invalid_config"
	ErrNotFound               ErrorType = "not_found"
	ErrTransport              ErrorType = "transport_error"
)

// IsType reports whether err is (or wraps) an *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// NewSessionAlreadyActiveError indicates a start attempt while a session is live.
func NewSessionAlreadyActiveError(sessionID string) *Error {
	return &Error{
		Type:    ErrSessionAlreadyActive,
		Message: fmt.Sprintf("session %s is already live", sessionID),
	}
}

// NewSessionNotReadyError indicates transcription arrived outside an accepting state.
func NewSessionNotReadyError(status string) *Error {
	return &Error{
		Type:    ErrSessionNotReady,
		Message: fmt.Sprintf("session is not accepting transcription (status: %s)", status),
	}
}

// NewTransportConnectFailedError wraps a voice transport connection failure.
func NewTransportConnectFailedError(underlying error) *Error {
	return &Error{
		Type:    ErrTransportConnectFailed,
		Message: fmt.Sprintf("voice transport connect failed: %v", underlying),
		wrapped: underlying,
	}
}

// NewMalformedDataPacketError indicates a data packet that does not match the
// expected {speaker, segments} shape. Only the payload size is recorded,
// never the payload itself.
func NewMalformedDataPacketError(payloadBytes int, underlying error) *Error {
	return &Error{
		Type:    ErrMalformedDataPacket,
		Message: fmt.Sprintf("malformed data packet (%d bytes): %v", payloadBytes, underlying),
		wrapped: underlying,
	}
}

// NewInvalidStateError indicates an operation attempted in a state that does
// not permit it.
func NewInvalidStateError(op, status string) *Error {
	return &Error{
		Type:    ErrInvalidState,
		Message: fmt.Sprintf("%s is not valid while session is %s", op, status),
		Param:   op,
	}
}

// NewInvalidConfigError indicates a session config that fails validation.
func NewInvalidConfigError(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidConfig,
		Message: message,
		Param:   param,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewTransportError wraps a transport-level error during active operation.
func NewTransportError(message string, underlying error) *Error {
	if underlying != nil {
		message = fmt.Sprintf("%s: %v", message, underlying)
	}
	return &Error{
		Type:    ErrTransport,
		Message: message,
		wrapped: underlying,
	}
}
