package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorInvalidArgument
)

func (t ErrorType) String() string {
	switch t {
	case ErrorNone:
		return "None"
	case ErrorTransport:
		return "Transport"
	case ErrorProtocol:
		return "Protocol"
	case ErrorInvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketCreateFailure
	TransportErrorSocketAcceptFailure
	TransportErrorSocketConnectFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorDnsFailure
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

// ProtocolError represents protocol-layer specific errors.
// The request-side codes are the Malformed class: the peer is answered
// with 400 Bad Request.
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorInvalidRequestLine
	ProtocolErrorInvalidHeader
	ProtocolErrorIncompleteHead
	ProtocolErrorInvalidEncoding
	ProtocolErrorMessageTooLarge
	ProtocolErrorInvalidStatusLine
	ProtocolErrorIncompleteResponse
	ProtocolErrorUnexpectedData
)

// HttpError is the error type shared by every layer of the server
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("Transport error (%d)", e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("Protocol error (%d)", e.ProtocolErr)
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// AsTransportError keeps err if it is already a classified transport
// error and wraps it under code otherwise.
func AsTransportError(err error, code TransportError, message string) error {
	if IsTransport(err) {
		return err
	}
	return NewTransportError(code, message, err)
}

// As returns the first *HttpError in err's chain.
func As(err error) (*HttpError, bool) {
	var httpErr *HttpError
	if stderrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsMalformed reports whether err says the request bytes did not parse.
func IsMalformed(err error) bool {
	httpErr, ok := As(err)
	if !ok || httpErr.Type != ErrorProtocol {
		return false
	}
	switch httpErr.ProtocolErr {
	case ProtocolErrorInvalidRequestLine,
		ProtocolErrorInvalidHeader,
		ProtocolErrorIncompleteHead,
		ProtocolErrorInvalidEncoding,
		ProtocolErrorMessageTooLarge:
		return true
	}
	return false
}

// IsTransport reports whether err is an I/O failure on a stream or listener.
func IsTransport(err error) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorTransport
}

// IsAccept reports whether err came from accepting a connection.
func IsAccept(err error) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorTransport && httpErr.TransportErr == TransportErrorSocketAcceptFailure
}

// IsConnectionClosed reports whether the peer went away.
func IsConnectionClosed(err error) bool {
	httpErr, ok := As(err)
	return ok && httpErr.Type == ErrorTransport && httpErr.TransportErr == TransportErrorConnectionClosed
}
