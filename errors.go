package labnote

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrUnexpectedStatus indicates the backend answered with a non-success
	// HTTP status before streaming began.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrNoTransport indicates a session was used without a transport.
	ErrNoTransport = errors.New("no transport configured")
)

// ErrorKind classifies a stream failure.
type ErrorKind int

const (
	// ErrorTransport means the request could not be sent, the backend
	// answered with a failure status, or the body could not be read.
	ErrorTransport ErrorKind = iota
	// ErrorProtocol means the backend reported a failure mid-stream.
	ErrorProtocol
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorTransport:
		return "transport"
	case ErrorProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is the failure recorded on an errored session.
type Error struct {
	Kind    ErrorKind
	Status  int // HTTP status when known, 0 otherwise
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String() + " error"
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// TransportError wraps err as an ErrorTransport failure. A status carried by a
// wrapped *Error is preserved.
func TransportError(err error) *Error {
	var le *Error
	if errors.As(err, &le) {
		return &Error{Kind: ErrorTransport, Status: le.Status, Err: err}
	}
	return &Error{Kind: ErrorTransport, Err: err}
}

// ProtocolError returns an ErrorProtocol failure carrying the backend's
// message verbatim.
func ProtocolError(message string) *Error {
	return &Error{Kind: ErrorProtocol, Message: message}
}

// IsProtocol reports whether err is a backend-reported stream failure.
func IsProtocol(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == ErrorProtocol
}
