// Package errs defines the typed error kinds used across the router so
// callers can distinguish recoverable, absorbed failures from the few
// errors that are meant to surface to a caller.
package errs

import "fmt"

// Kind is one of the error categories from the router's error-handling
// design: inputs that violate documented constraints, failures absorbed
// at a provider or sink boundary, transport failures surfaced to a host
// pumping an external broker, and policy configuration errors.
type Kind string

const (
	// InvalidArgument marks inputs that violate a documented constraint.
	// Not retried; always surfaced to the caller.
	InvalidArgument Kind = "invalid_argument"

	// ProviderFailure marks a context provider or adapter failure.
	// Absorbed locally by the caller, which falls back to a zero context.
	ProviderFailure Kind = "provider_failure"

	// SinkFailure marks a registered sink that returned an error.
	// Absorbed by the router; other sinks still run.
	SinkFailure Kind = "sink_failure"

	// TransportFailure marks a broker/adapter I/O failure. Surfaced to
	// the host driving poll_once; the bus itself remains usable.
	TransportFailure Kind = "transport_failure"

	// ConfigError marks a rejected policy construction or update.
	ConfigError Kind = "config_error"
)

// Error wraps a Kind, a human-readable message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, errs.InvalidArgument)-style checks against the
// Kind constants by wrapping them with New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// OfKind is a sentinel usable with errors.Is(err, errs.OfKind(errs.InvalidArgument)).
func OfKind(kind Kind) error {
	return &Error{Kind: kind}
}
