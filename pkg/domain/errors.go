package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into an HTTP-like category so adapters can map
// it to a transport status without inspecting Code strings.
type Kind int

const (
	// KindInternal covers serialization, upcast, type-mismatch and handler
	// registry issues that have no more specific kind.
	KindInternal Kind = iota
	KindInvalidValue
	KindInvalidCommand
	KindUnauthorized
	KindNotFound
	// KindConflict is the only retryable kind (optimistic concurrency).
	KindConflict
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidValue:
		return "InvalidValue"
	case KindInvalidCommand:
		return "InvalidCommand"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidState:
		return "InvalidState"
	default:
		return "Internal"
	}
}

// Stable error codes. Part of the public API; never change meaning.
const (
	CodeVersionConflict        = "VERSION_CONFLICT"
	CodeUpcastFailed           = "UPCAST_FAILED"
	CodeHandlerNotFound        = "HANDLER_NOT_FOUND"
	CodeTypeMismatch           = "TYPE_MISMATCH"
	CodeAggregateNotFound      = "AGGREGATE_NOT_FOUND"
	CodeHandlerAlreadyRegistered = "HANDLER_ALREADY_REGISTERED"
	CodeSerializationError     = "SERIALIZATION_ERROR"
	CodeEventBusError          = "EVENT_BUS_ERROR"
	CodeInvalidCommand         = "INVALID_COMMAND"
	CodeInvalidState           = "INVALID_STATE"
	CodeInvalidValue           = "INVALID_VALUE"
	CodeUnauthorized           = "UNAUTHORIZED"
)

// Error is the single framework-wide error type. Every port and core
// operation surfaces failures through it so callers can pattern-match on
// Kind and on the stable Code without needing a closed sentinel enum.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the kind is the optimistic-concurrency conflict
// kind, the only one the source ever recommends retrying.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict
}

func newError(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// NewVersionConflict builds a Conflict error for a detected optimistic
// concurrency violation on an aggregate append.
func NewVersionConflict(aggregateID string, expected, actual int) *Error {
	return newError(KindConflict, CodeVersionConflict,
		fmt.Sprintf("aggregate %s: expected version %d, got %d", aggregateID, expected, actual), nil)
}

// NewUpcastFailed builds an Internal error describing which upcaster stage
// failed to rewrite which event.
func NewUpcastFailed(eventType string, fromVersion int, stage, reason string) *Error {
	msg := fmt.Sprintf("upcast failed for %s v%d", eventType, fromVersion)
	if stage != "" {
		msg = fmt.Sprintf("%s at stage %s: %s", msg, stage, reason)
	} else {
		msg = fmt.Sprintf("%s: %s", msg, reason)
	}
	return newError(KindInternal, CodeUpcastFailed, msg, nil)
}

// NewHandlerNotFound builds the error returned when a command/query bus
// dispatch misses a registered handler for the given type name.
func NewHandlerNotFound(typeName string) *Error {
	return newError(KindInternal, CodeHandlerNotFound,
		fmt.Sprintf("no handler registered for %s", typeName), nil)
}

// NewHandlerAlreadyRegistered builds the error returned on duplicate
// registration of the same command/query key.
func NewHandlerAlreadyRegistered(typeName string) *Error {
	return newError(KindInternal, CodeHandlerAlreadyRegistered,
		fmt.Sprintf("handler already registered for %s", typeName), nil)
}

// NewTypeMismatch builds the defensive error surfaced when a query bus
// result downcast observes a registry entry with an unexpected type.
func NewTypeMismatch(expected, found string) *Error {
	return newError(KindInternal, CodeTypeMismatch,
		fmt.Sprintf("expected %s, found %s", expected, found), nil)
}

// NewAggregateNotFound builds the error returned when loading an aggregate
// id that has no persisted events and no version.
func NewAggregateNotFound(aggregateType, aggregateID string) *Error {
	return newError(KindNotFound, CodeAggregateNotFound,
		fmt.Sprintf("%s %s not found", aggregateType, aggregateID), nil)
}

// NewSerializationError builds an Internal error wrapping a marshal/
// unmarshal failure, preserving the underlying cause for downcast.
func NewSerializationError(cause error) *Error {
	return newError(KindInternal, CodeSerializationError, "serialization failed", cause)
}

// NewEventBusError builds an Internal error for a transport-level bus
// failure (publish/subscribe), preserving the underlying cause.
func NewEventBusError(reason string, cause error) *Error {
	return newError(KindInternal, CodeEventBusError, reason, cause)
}

// NewInternal builds a KindInternal error under a caller-chosen stable code,
// for layers above this module (application, infrastructure) that need their
// own codes without reaching into the private error constructor.
func NewInternal(code, message string, cause error) *Error {
	return newError(KindInternal, code, message, cause)
}

// NewInvalidCommand builds the InvalidCommand error an aggregate's Execute
// returns when a command's preconditions are unmet.
func NewInvalidCommand(reason string) *Error {
	return newError(KindInvalidCommand, CodeInvalidCommand, reason, nil)
}

// NewInvalidState builds the InvalidState error an aggregate's Execute
// returns when its current state disallows the requested operation.
func NewInvalidState(reason string) *Error {
	return newError(KindInvalidState, CodeInvalidState, reason, nil)
}

// NewInvalidValue builds the InvalidValue error for failed value-object or
// input validation.
func NewInvalidValue(field, reason string) *Error {
	msg := reason
	if field != "" {
		msg = fmt.Sprintf("%s: %s", field, reason)
	}
	return newError(KindInvalidValue, CodeInvalidValue, msg, nil)
}

// NewUnauthorized builds the Unauthorized error.
func NewUnauthorized(reason string) *Error {
	return newError(KindUnauthorized, CodeUnauthorized, reason, nil)
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, defaulting
// to KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the stable Code of err if it is (or wraps) a *Error.
func CodeOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
