package infrastructure

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/pericarp/es/pkg/domain"
)

// RateLimitedDeliverer wraps an eventing.EventDeliverer, throttling
// FetchEvents so a burst of pending outbox rows can't flood a downstream
// bus faster than it's provisioned to absorb.
type RateLimitedDeliverer struct {
	next    eventDeliverer
	limiter *rate.Limiter
}

// eventDeliverer mirrors eventing.EventDeliverer's method set locally so
// this file has no import-cycle risk with pkg/eventing; both interfaces are
// satisfied by the same concrete types.
type eventDeliverer interface {
	FetchEvents(ctx context.Context) ([]domain.SerializedEvent, error)
	MarkDelivered(ctx context.Context, events []domain.SerializedEvent) error
	MarkFailed(ctx context.Context, events []domain.SerializedEvent, reason string) error
}

// NewRateLimitedDeliverer wraps next with a token-bucket limiter allowing
// eventsPerSecond fetch calls per second, up to burst at once.
func NewRateLimitedDeliverer(next eventDeliverer, eventsPerSecond float64, burst int) *RateLimitedDeliverer {
	return &RateLimitedDeliverer{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

// FetchEvents blocks for a token before delegating, so a deliverer with a
// short poll interval can't outpace the configured rate.
func (d *RateLimitedDeliverer) FetchEvents(ctx context.Context) ([]domain.SerializedEvent, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, domain.NewEventBusError("rate limiter wait", err)
	}
	return d.next.FetchEvents(ctx)
}

// MarkDelivered delegates unchanged.
func (d *RateLimitedDeliverer) MarkDelivered(ctx context.Context, events []domain.SerializedEvent) error {
	return d.next.MarkDelivered(ctx, events)
}

// MarkFailed delegates unchanged.
func (d *RateLimitedDeliverer) MarkFailed(ctx context.Context, events []domain.SerializedEvent, reason string) error {
	return d.next.MarkFailed(ctx, events, reason)
}
