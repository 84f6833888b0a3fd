// Package application implements the CQRS layer that sits between external
// callers and the domain's aggregate roots: unified command/query handler
// signatures, a type-erased dispatch bus for each, and composable
// middleware for logging, validation, metrics, error normalization, and
// query caching.
//
// The application layer coordinates between the domain layer (business
// logic) and infrastructure layer (technical concerns) without containing
// business logic itself.
package application

import (
	"context"

	"github.com/pericarp/es/pkg/domain"
)

// Payload wraps request data with metadata for unified handler signatures.
// This enables the same middleware to work with both commands and queries
// by providing a consistent structure for request data and context.
type Payload[T any] struct {
	// Data contains the actual command or query being processed.
	Data T

	// Metadata contains additional context useful to middleware or
	// handlers (correlation IDs, feature flags, ...).
	Metadata map[string]any

	// TraceID threads a distributed-tracing identifier through middleware.
	TraceID string

	// UserID identifies the caller for authorization and auditing.
	UserID string
}

// Response wraps response data with metadata for unified handler signatures.
type Response[T any] struct {
	// Data contains the response payload. For commands this is typically
	// struct{}; for queries it is the requested view.
	Data T

	// Metadata carries additional information middleware or clients may
	// use (cache status, aggregate version, ...).
	Metadata map[string]any

	// Error carries any error that occurred, so middleware can inspect or
	// replace it before it reaches the caller.
	Error error
}

// Command represents an intention to change system state. Implementations
// should use verb-noun naming (OpenAccount, DepositFunds).
type Command interface {
	// CommandType returns a stable identifier used to route this command
	// to its registered handler.
	CommandType() string
}

// Query represents a request for information. Implementations should use
// question-like naming (GetAccount, ListTransfers).
type Query interface {
	// QueryType returns a stable identifier used to route this query to
	// its registered handler.
	QueryType() string
}

// Handler is the unified signature both command and query handlers
// implement, letting the same middleware wrap either.
type Handler[Req any, Res any] func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error)

// Middleware decorates a Handler with a cross-cutting concern.
type Middleware[Req any, Res any] func(next Handler[Req, Res]) Handler[Req, Res]

// Chain applies middleware to handler in the order given, so the first
// middleware in the slice is the outermost wrapper and runs first.
func Chain[Req any, Res any](handler Handler[Req, Res], middleware ...Middleware[Req, Res]) Handler[Req, Res] {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// requestTypeOf extracts a stable name for logging/metrics/caching without
// requiring every Req to implement Command or Query.
func requestTypeOf(data any) string {
	switch v := data.(type) {
	case Command:
		return v.CommandType()
	case Query:
		return v.QueryType()
	default:
		return typeNameOf(data)
	}
}
