package eventing

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pericarp/es/pkg/domain"
)

// EventEngineConfig tunes the engine's three cadences.
type EventEngineConfig struct {
	// DeliverInterval is how often the outbox deliverer is polled.
	DeliverInterval time.Duration
	// ReclaimInterval is how often previously failed events are re-fetched.
	ReclaimInterval time.Duration
	// HandlerConcurrency bounds how many handlers run at once for a single
	// delivered event.
	HandlerConcurrency int
}

// DefaultEventEngineConfig matches the cadence a production deployment
// should start from: deliver frequently, reclaim on a much slower backoff,
// fan out to a handful of handlers concurrently.
func DefaultEventEngineConfig() EventEngineConfig {
	return EventEngineConfig{
		DeliverInterval:    10 * time.Second,
		ReclaimInterval:    60 * time.Second,
		HandlerConcurrency: 8,
	}
}

// EventEngine orchestrates three long-running loops sharing one bus: a
// deliver loop draining the outbox on DeliverInterval, a reclaim loop
// re-publishing previously failed events on ReclaimInterval, and a subscribe
// loop that dispatches every bus event to its matching handlers.
type EventEngine struct {
	bus       EventBus
	deliverer EventDeliverer
	reclaimer EventReclaimer
	registry  *HandlerRegistry
	config    EventEngineConfig
}

// NewEventEngine builds an engine. handlers are partitioned into a
// HandlerRegistry once; Start may be called any number of times, each
// producing an independent EngineHandle.
func NewEventEngine(bus EventBus, deliverer EventDeliverer, reclaimer EventReclaimer, handlers []EventHandler, config EventEngineConfig) *EventEngine {
	if config.HandlerConcurrency < 1 {
		config.HandlerConcurrency = 1
	}
	return &EventEngine{
		bus:       bus,
		deliverer: deliverer,
		reclaimer: reclaimer,
		registry:  NewHandlerRegistry(handlers),
		config:    config,
	}
}

// EngineHandle lets a caller stop the engine's loops and wait for them to
// drain. Shutdown is idempotent; Wait blocks until every loop has returned.
type EngineHandle struct {
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// Shutdown cancels every loop's context. Safe to call more than once.
func (h *EngineHandle) Shutdown() { h.cancel() }

// Wait blocks until every loop goroutine has returned. Call Shutdown first
// (or let the parent context expire) or Wait blocks forever.
func (h *EngineHandle) Wait() { h.wg.Wait() }

// Start launches the deliver, reclaim, and subscribe loops as goroutines
// bound to a child of ctx, and returns a handle to stop and join them.
func (e *EventEngine) Start(ctx context.Context) *EngineHandle {
	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.periodic(loopCtx, e.config.DeliverInterval, e.runDeliver)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.periodic(loopCtx, e.config.ReclaimInterval, e.runReclaim)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.subscribeLoop(loopCtx)
	}()

	return &EngineHandle{cancel: cancel, wg: &wg}
}

// periodic runs tick on every ticker fire until ctx is cancelled. Like
// Tokio's MissedTickBehavior::Skip, a tick that arrives while tick is still
// running is not queued beyond one: ticker.C buffers a single pending tick
// and drops the rest.
func (e *EventEngine) periodic(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (e *EventEngine) runDeliver(ctx context.Context) {
	events, err := e.deliverer.FetchEvents(ctx)
	if err != nil || len(events) == 0 {
		return
	}
	e.publishAndMark(ctx, events,
		func(ctx context.Context, ok []domain.SerializedEvent) { _ = e.deliverer.MarkDelivered(ctx, ok) },
		func(ctx context.Context, failed []domain.SerializedEvent, reason string) {
			_ = e.deliverer.MarkFailed(ctx, failed, reason)
		})
}

func (e *EventEngine) runReclaim(ctx context.Context) {
	events, err := e.reclaimer.FetchEvents(ctx)
	if err != nil || len(events) == 0 {
		return
	}
	e.publishAndMark(ctx, events,
		func(ctx context.Context, ok []domain.SerializedEvent) { _ = e.reclaimer.MarkReclaimed(ctx, ok) },
		func(ctx context.Context, failed []domain.SerializedEvent, reason string) {
			_ = e.reclaimer.MarkFailed(ctx, failed, reason)
		})
}

// publishAndMark tries one batch publish first; on failure it falls back to
// publishing (and marking) each event individually, so one bad event in a
// batch never blocks the rest.
func (e *EventEngine) publishAndMark(
	ctx context.Context,
	events []domain.SerializedEvent,
	markOK func(context.Context, []domain.SerializedEvent),
	markFailed func(context.Context, []domain.SerializedEvent, string),
) {
	if err := e.bus.PublishBatch(ctx, events); err == nil {
		markOK(ctx, events)
		return
	}

	for _, event := range events {
		if err := e.bus.Publish(ctx, event); err != nil {
			markFailed(ctx, []domain.SerializedEvent{event}, err.Error())
			continue
		}
		markOK(ctx, []domain.SerializedEvent{event})
	}
}

// subscribeLoop drains the bus's subscription channel until it closes or
// ctx is cancelled, dispatching each event to its matching handlers with
// bounded concurrency.
func (e *EventEngine) subscribeLoop(ctx context.Context) {
	stream, err := e.bus.Subscribe(ctx)
	if err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			matched := e.registry.Matching(event.EventType)
			if len(matched) == 0 {
				continue
			}
			e.dispatch(ctx, event, matched)
		}
	}
}

// dispatch runs every matched handler for event concurrently, bounded by
// HandlerConcurrency. A handler failure is reported to the reclaimer and
// never aborts its siblings.
func (e *EventEngine) dispatch(ctx context.Context, event domain.SerializedEvent, handlers []EventHandler) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.config.HandlerConcurrency)

	for _, handler := range handlers {
		handler := handler
		group.Go(func() error {
			if err := handler.Handle(groupCtx, event); err != nil {
				_ = e.reclaimer.MarkHandlerFailed(ctx, handler.HandlerName(), []domain.SerializedEvent{event}, err.Error())
			}
			return nil
		})
	}
	_ = group.Wait()
}
