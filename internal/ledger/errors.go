package ledger

import (
	"errors"
	"fmt"
)

// Error taxonomy for the sync layer.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, ledger.ErrRemoteRejection) {
//	    // the server answered but refused the request
//	}
var (
	// ErrValidation is returned for malformed caller input. Nothing is sent
	// or queued when it is returned.
	ErrValidation = errors.New("invalid input")

	// ErrTransientNetwork covers timeouts, connection failures and non-2xx
	// HTTP statuses.
	ErrTransientNetwork = errors.New("network failure")

	// ErrProtocol is returned when the response body is an HTML page or
	// cannot be parsed as JSON.
	ErrProtocol = errors.New("protocol error")

	// ErrRemoteRejection is returned when a well-formed response carries an
	// explicit error field.
	ErrRemoteRejection = errors.New("rejected by remote")

	// ErrOfflineDeferral marks an operation that was accepted into the local
	// queue instead of being sent. It is a control signal, not a failure.
	ErrOfflineDeferral = errors.New("deferred while offline")
)

// ValidationError describes which input field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ErrorKind classifies a RemoteError.
type ErrorKind int

const (
	// KindTransient is a timeout, connection failure or HTTP status error.
	KindTransient ErrorKind = iota
	// KindProtocol is an HTML or unparsable body.
	KindProtocol
	// KindRejection is an explicit error field in a parsed body.
	KindRejection
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindProtocol:
		return "protocol"
	case KindRejection:
		return "rejection"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindProtocol:
		return ErrProtocol
	case KindRejection:
		return ErrRemoteRejection
	default:
		return ErrTransientNetwork
	}
}

// RemoteError is a failed call to the remote API.
type RemoteError struct {
	Kind   ErrorKind
	Action Action

	// StatusCode is set for HTTP status failures.
	StatusCode int

	// Message is the human-readable reason. For rejections it is the
	// server's error text verbatim.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// IsValidation reports whether err is caller input that must not be retried.
func IsValidation(err error) bool {
	return err != nil && errors.Is(err, ErrValidation)
}

// IsRemoteFailure reports whether err came from an online attempt against
// the remote API (network, protocol or rejection).
func IsRemoteFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransientNetwork) ||
		errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrRemoteRejection)
}

// IsOfflineDeferral reports whether err signals a queued operation.
func IsOfflineDeferral(err error) bool {
	return err != nil && errors.Is(err, ErrOfflineDeferral)
}
