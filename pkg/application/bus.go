package application

import (
	"context"
	"reflect"
	"sync"

	"github.com/pericarp/es/pkg/domain"
)

// Go cannot give an interface a generic method (no per-call type parameter
// on a dispatch(ctx, cmd C) method), so both buses below are type-erased:
// registration and dispatch are free generic functions operating on a
// concrete, non-generic bus value, keyed by reflect.Type instead of Rust's
// TypeId. This is the idiomatic substitute for the source's generic
// trait-method dispatch.

type commandEntry struct {
	typeName string
	invoke   func(ctx context.Context, log domain.Logger, cmd any) error
}

// CommandBus routes a Command value to the handler registered for its
// concrete type. Construct it with NewCommandBus: the zero value has no
// handler map, so registering on it panics.
type CommandBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]commandEntry
}

// NewCommandBus constructs an empty CommandBus.
func NewCommandBus() *CommandBus {
	return &CommandBus{handlers: make(map[reflect.Type]commandEntry)}
}

// RegisterCommandHandler binds handler (already wrapped by any middleware
// via Chain) to command type C. Registering the same type twice returns a
// HandlerAlreadyRegistered error.
func RegisterCommandHandler[C any](bus *CommandBus, handler Handler[C, struct{}]) error {
	key := reflect.TypeOf((*C)(nil)).Elem()

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, exists := bus.handlers[key]; exists {
		return domain.NewHandlerAlreadyRegistered(key.String())
	}

	bus.handlers[key] = commandEntry{
		typeName: key.String(),
		invoke: func(ctx context.Context, log domain.Logger, cmd any) error {
			typed, ok := cmd.(C)
			if !ok {
				return domain.NewTypeMismatch(key.String(), reflect.TypeOf(cmd).String())
			}
			response, err := handler(ctx, log, Payload[C]{Data: typed})
			if err != nil {
				return err
			}
			return response.Error
		},
	}
	return nil
}

// DispatchCommand routes cmd to its registered handler. Returns a
// HandlerNotFound error if no handler was registered for C.
func DispatchCommand[C any](ctx context.Context, bus *CommandBus, log domain.Logger, cmd C) error {
	key := reflect.TypeOf((*C)(nil)).Elem()

	bus.mu.RLock()
	entry, ok := bus.handlers[key]
	bus.mu.RUnlock()
	if !ok {
		return domain.NewHandlerNotFound(key.String())
	}
	return entry.invoke(ctx, log, cmd)
}

// RegisteredCommands returns the type names registered on bus, for
// diagnostics.
func (bus *CommandBus) RegisteredCommands() []string {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	names := make([]string, 0, len(bus.handlers))
	for _, e := range bus.handlers {
		names = append(names, e.typeName)
	}
	return names
}

type queryEntry struct {
	typeName string
	invoke   func(ctx context.Context, log domain.Logger, query any) (any, error)
}

// queryKey pairs a query type with its result type: the same query type may
// have several handlers distinguished only by what they return, so the
// query type alone is not a unique key (unlike the command bus, where a
// command has exactly one handler and one outcome).
type queryKey struct {
	query  reflect.Type
	result reflect.Type
}

// QueryBus routes a Query value to the handler registered for its
// (concrete type, result type) pair, returning the handler's typed result
// as `any`; DispatchQuery recovers the concrete type for the caller.
type QueryBus struct {
	mu       sync.RWMutex
	handlers map[queryKey]queryEntry
}

// NewQueryBus constructs an empty QueryBus.
func NewQueryBus() *QueryBus {
	return &QueryBus{handlers: make(map[queryKey]queryEntry)}
}

// RegisterQueryHandler binds handler to the (query type Q, result type R)
// pair. Registering a second handler for Q with a different R succeeds;
// only the same (Q, R) pair twice returns HandlerAlreadyRegistered.
func RegisterQueryHandler[Q any, R any](bus *QueryBus, handler Handler[Q, R]) error {
	qType := reflect.TypeOf((*Q)(nil)).Elem()
	rType := reflect.TypeOf((*R)(nil)).Elem()
	key := queryKey{query: qType, result: rType}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, exists := bus.handlers[key]; exists {
		return domain.NewHandlerAlreadyRegistered(qType.String())
	}

	bus.handlers[key] = queryEntry{
		typeName: qType.String(),
		invoke: func(ctx context.Context, log domain.Logger, query any) (any, error) {
			typed, ok := query.(Q)
			if !ok {
				return nil, domain.NewTypeMismatch(qType.String(), reflect.TypeOf(query).String())
			}
			response, err := handler(ctx, log, Payload[Q]{Data: typed})
			if err != nil {
				return nil, err
			}
			if response.Error != nil {
				return nil, response.Error
			}
			return response.Data, nil
		},
	}
	return nil
}

// DispatchQuery routes query to the handler registered for (Q, R) and
// downcasts the result to R, returning a TypeMismatch error if the
// registry entry's result type ever diverges from R (a defensive check:
// it can only happen under registry corruption, since the key already
// encodes R).
func DispatchQuery[Q any, R any](ctx context.Context, bus *QueryBus, log domain.Logger, query Q) (R, error) {
	var zero R
	qType := reflect.TypeOf((*Q)(nil)).Elem()
	rType := reflect.TypeOf((*R)(nil)).Elem()
	key := queryKey{query: qType, result: rType}

	bus.mu.RLock()
	entry, ok := bus.handlers[key]
	bus.mu.RUnlock()
	if !ok {
		return zero, domain.NewHandlerNotFound(qType.String())
	}

	result, err := entry.invoke(ctx, log, query)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(R)
	if !ok {
		return zero, domain.NewTypeMismatch(reflect.TypeOf(zero).String(), reflect.TypeOf(result).String())
	}
	return typed, nil
}

// DispatchBatchQuery dispatches each query in queries, in order, to the
// handler registered for (Q, R), stopping at the first error. The results
// collected before the failing query are returned alongside it, so a
// caller can tell how far the batch got.
func DispatchBatchQuery[Q any, R any](ctx context.Context, bus *QueryBus, log domain.Logger, queries []Q) ([]R, error) {
	results := make([]R, 0, len(queries))
	for _, query := range queries {
		result, err := DispatchQuery[Q, R](ctx, bus, log, query)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// RegisteredQueries returns the query type names registered on bus, for
// diagnostics. A query type with handlers for several result types appears
// once per handler.
func (bus *QueryBus) RegisteredQueries() []string {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	names := make([]string, 0, len(bus.handlers))
	for _, e := range bus.handlers {
		names = append(names, e.typeName)
	}
	return names
}
