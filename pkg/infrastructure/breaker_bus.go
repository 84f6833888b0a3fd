package infrastructure

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pericarp/es/pkg/domain"
)

// eventBus mirrors eventing.EventBus's method set locally, same rationale
// as eventDeliverer in rate_limited_deliverer.go.
type eventBus interface {
	Publish(ctx context.Context, event domain.SerializedEvent) error
	PublishBatch(ctx context.Context, events []domain.SerializedEvent) error
	Subscribe(ctx context.Context) (<-chan domain.SerializedEvent, error)
}

// BreakerEventBus wraps an EventBus's Publish/PublishBatch calls in a
// gobreaker.CircuitBreaker, so a downstream transport outage trips open
// after a run of failures instead of every deliverer tick blocking on a
// doomed publish. Subscribe passes straight through: there is nothing to
// trip on a read side with no downstream call to fail.
type BreakerEventBus struct {
	next    eventBus
	breaker *gobreaker.CircuitBreaker
}

// DefaultBreakerSettings trips after 5 requests with a failure ratio
// at/above 50%, half-opens after 30s.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	}
}

// NewBreakerEventBus wraps next with a circuit breaker using settings.
func NewBreakerEventBus(next eventBus, settings gobreaker.Settings) *BreakerEventBus {
	return &BreakerEventBus{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Publish routes through the breaker, translating gobreaker.ErrOpenState and
// gobreaker.ErrTooManyRequests into a domain.Error bus failure.
func (b *BreakerEventBus) Publish(ctx context.Context, event domain.SerializedEvent) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.Publish(ctx, event)
	})
	if err != nil {
		return domain.NewEventBusError("publish via circuit breaker", err)
	}
	return nil
}

// PublishBatch routes through the same breaker as Publish.
func (b *BreakerEventBus) PublishBatch(ctx context.Context, events []domain.SerializedEvent) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.PublishBatch(ctx, events)
	})
	if err != nil {
		return domain.NewEventBusError("publish batch via circuit breaker", err)
	}
	return nil
}

// Subscribe delegates directly; see type doc comment.
func (b *BreakerEventBus) Subscribe(ctx context.Context) (<-chan domain.SerializedEvent, error) {
	return b.next.Subscribe(ctx)
}

// State returns the breaker's current state, for health checks/metrics.
func (b *BreakerEventBus) State() gobreaker.State {
	return b.breaker.State()
}
