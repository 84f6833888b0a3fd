// Package eventing orchestrates the outbox-to-bus delivery, compensating
// reclaim, and subscribe-and-dispatch loop that moves a SerializedEvent from
// an aggregate's Save call to every interested handler, decoupled from both
// the write path and from each other's cadence.
package eventing

import (
	"context"

	"github.com/pericarp/es/pkg/domain"
)

// EventBus is the publish/subscribe transport port. Implementations fan a
// published event out to every active subscriber; PublishBatch lets an
// adapter batch a delivery round when the transport supports it, falling
// back to per-event Publish on partial failure.
type EventBus interface {
	Publish(ctx context.Context, event domain.SerializedEvent) error
	PublishBatch(ctx context.Context, events []domain.SerializedEvent) error
	Subscribe(ctx context.Context) (<-chan domain.SerializedEvent, error)
}

// EventDeliverer is the outbox-polling port: fetch events not yet marked
// delivered, then mark the batch's outcome after an attempted publish.
type EventDeliverer interface {
	FetchEvents(ctx context.Context) ([]domain.SerializedEvent, error)
	MarkDelivered(ctx context.Context, events []domain.SerializedEvent) error
	MarkFailed(ctx context.Context, events []domain.SerializedEvent, reason string) error
}

// EventReclaimer is the compensating-replay port: events previously marked
// failed (by a deliverer publish failure or a handler failure) are fetched
// again on a slower cadence and re-published. MarkHandlerFailed is the hook
// a handler failure feeds back into, so a failed handler gets another pass
// without blocking the rest of the subscribe loop.
type EventReclaimer interface {
	FetchEvents(ctx context.Context) ([]domain.SerializedEvent, error)
	MarkReclaimed(ctx context.Context, events []domain.SerializedEvent) error
	MarkFailed(ctx context.Context, events []domain.SerializedEvent, reason string) error
	MarkHandlerFailed(ctx context.Context, handlerName string, events []domain.SerializedEvent, reason string) error
}

// HandledEventType discriminates which events a handler wants to see.
type HandledEventType struct {
	all   bool
	types map[string]struct{}
}

// AllEventTypes builds a HandledEventType that matches every event.
func AllEventTypes() HandledEventType { return HandledEventType{all: true} }

// OneEventType builds a HandledEventType that matches exactly one event type.
func OneEventType(eventType string) HandledEventType {
	return HandledEventType{types: map[string]struct{}{eventType: {}}}
}

// ManyEventTypes builds a HandledEventType that matches any of the given
// event types.
func ManyEventTypes(eventTypes ...string) HandledEventType {
	set := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		set[t] = struct{}{}
	}
	return HandledEventType{types: set}
}

// Matches reports whether eventType is handled.
func (h HandledEventType) Matches(eventType string) bool {
	if h.all {
		return true
	}
	_, ok := h.types[eventType]
	return ok
}

// EventHandler reacts to a delivered event. HandlerName identifies it in
// reclaim-path failure bookkeeping.
type EventHandler interface {
	HandlerName() string
	HandledEventType() HandledEventType
	Handle(ctx context.Context, event domain.SerializedEvent) error
}
