package domain

import "context"

// AggregateRepository is the interface both the event-sourced and
// snapshot-accelerated repositories satisfy: load an aggregate by id
// (the zero value, false and a nil error if it has never been created) and
// save the events a command
// round produced.
type AggregateRepository[A Aggregate[C, E], C any, E Event] interface {
	Load(ctx context.Context, id string) (A, bool, error)
	Save(ctx context.Context, aggregate A, events []E, evtCtx EventContext) ([]EventEnvelope[E], error)
}

// EventStoreAggregateRepository loads an aggregate purely by replaying its
// event stream (through the upcaster chain) and saves by appending new
// events. newAggregate constructs a zero-value aggregate for a given id;
// Go cannot instantiate a generic type parameter directly, so callers
// inject the factory explicitly (the idiomatic substitute for the source's
// associated "new" function).
type EventStoreAggregateRepository[A Aggregate[C, E], C any, E Event] struct {
	events        EventRepository
	upcasters     *UpcasterChain
	newAggregate  func(id string, version int) A
	decodeEvent   func(SerializedEvent) (E, error)
	aggregateType string
}

// NewEventStoreAggregateRepository builds the event-sourced repository.
// decodeEvent turns a (possibly upcasted) SerializedEvent back into the
// aggregate's typed event so Apply can fold over it.
func NewEventStoreAggregateRepository[A Aggregate[C, E], C any, E Event](
	events EventRepository,
	upcasters *UpcasterChain,
	aggregateType string,
	newAggregate func(id string, version int) A,
	decodeEvent func(SerializedEvent) (E, error),
) *EventStoreAggregateRepository[A, C, E] {
	return &EventStoreAggregateRepository[A, C, E]{
		events:        events,
		upcasters:     upcasters,
		newAggregate:  newAggregate,
		decodeEvent:   decodeEvent,
		aggregateType: aggregateType,
	}
}

// Load fetches every event for id, upcasts the batch to the current schema,
// and folds them onto a freshly constructed zero-value aggregate. Returns
// (zero, false, nil) when the aggregate has never been created.
func (r *EventStoreAggregateRepository[A, C, E]) Load(ctx context.Context, id string) (A, bool, error) {
	var zero A

	serialized, err := r.events.GetLastEvents(ctx, id, 0)
	if err != nil {
		return zero, false, err
	}
	if len(serialized) == 0 {
		return zero, false, nil
	}

	aggregate := r.newAggregate(id, 0)
	if err := r.replay(aggregate, serialized); err != nil {
		return zero, false, err
	}
	return aggregate, true, nil
}

// Replay applies get_last_events(id, aggregate.Version()) onto aggregate
// in place — the incremental-load helper the snapshot-accelerated
// repository uses after reconstructing from a snapshot.
func (r *EventStoreAggregateRepository[A, C, E]) Replay(ctx context.Context, aggregate A) error {
	serialized, err := r.events.GetLastEvents(ctx, aggregate.ID(), aggregate.Version())
	if err != nil {
		return err
	}
	return r.replay(aggregate, serialized)
}

func (r *EventStoreAggregateRepository[A, C, E]) replay(aggregate A, serialized []SerializedEvent) error {
	if len(serialized) == 0 {
		return nil
	}
	upcasted, err := r.upcasters.UpcastAll(serialized)
	if err != nil {
		return err
	}
	for _, se := range upcasted {
		if se.AggregateType != r.aggregateType {
			return newError(KindInternal, CodeSerializationError,
				"aggregate type mismatch: expected "+r.aggregateType+", found "+se.AggregateType, nil)
		}
		event, err := r.decodeEvent(se)
		if err != nil {
			return NewSerializationError(err)
		}
		aggregate.Apply(event)
	}
	return nil
}

// Save wraps events in envelopes, serializes them, and appends them via the
// event repository in one atomic batch. An empty event list short-circuits
// to success with no envelopes.
func (r *EventStoreAggregateRepository[A, C, E]) Save(ctx context.Context, aggregate A, events []E, evtCtx EventContext) ([]EventEnvelope[E], error) {
	if len(events) == 0 {
		return nil, nil
	}

	envelopes := make([]EventEnvelope[E], 0, len(events))
	serialized := make([]SerializedEvent, 0, len(events))
	for _, event := range events {
		envelope := NewEventEnvelope(aggregate.ID(), r.aggregateType, event, evtCtx)
		se, err := EncodeEnvelope(envelope, event.EventType())
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, envelope)
		serialized = append(serialized, se)
	}

	if err := r.events.Save(ctx, serialized); err != nil {
		return nil, err
	}
	return envelopes, nil
}

// SnapshottingAggregateRepository accelerates Load by starting from the
// latest snapshot (when one exists) and replaying only the events past its
// version; it falls back to a full event-sourced load when no snapshot
// exists. Save always persists events first and the snapshot second —
// snapshot loss is tolerable, event loss is not — and a snapshot write
// failure never fails the command (see the decorator in repository.go,
// which already swallows saves the policy declines; adapters should log
// rather than propagate any remaining snapshot write error).
type SnapshottingAggregateRepository[A Aggregate[C, E], C any, E Event] struct {
	eventSourced *EventStoreAggregateRepository[A, C, E]
	snapshots    SnapshotRepository
	decodeState  func(SerializedSnapshot) (A, error)
	encodeState  func(A) (SerializedSnapshot, error)
	aggregateType string
}

// NewSnapshottingAggregateRepository builds the snapshot-accelerated
// repository on top of an existing event-sourced one.
func NewSnapshottingAggregateRepository[A Aggregate[C, E], C any, E Event](
	eventSourced *EventStoreAggregateRepository[A, C, E],
	snapshots SnapshotRepository,
	aggregateType string,
	decodeState func(SerializedSnapshot) (A, error),
	encodeState func(A) (SerializedSnapshot, error),
) *SnapshottingAggregateRepository[A, C, E] {
	return &SnapshottingAggregateRepository[A, C, E]{
		eventSourced:  eventSourced,
		snapshots:     snapshots,
		decodeState:   decodeState,
		encodeState:   encodeState,
		aggregateType: aggregateType,
	}
}

// Load tries the snapshot repository first; on a hit it reconstructs the
// aggregate from the snapshot payload and replays only the incremental
// events past the snapshot's version (never calling GetEvents). On a miss
// it falls back to the full event-sourced load.
func (r *SnapshottingAggregateRepository[A, C, E]) Load(ctx context.Context, id string) (A, bool, error) {
	var zero A

	snapshot, err := r.snapshots.GetSnapshot(ctx, id, nil)
	if err != nil {
		return zero, false, err
	}
	if snapshot == nil {
		return r.eventSourced.Load(ctx, id)
	}

	aggregate, err := r.decodeState(*snapshot)
	if err != nil {
		return zero, false, NewSerializationError(err)
	}
	if err := r.eventSourced.Replay(ctx, aggregate); err != nil {
		return zero, false, err
	}
	return aggregate, true, nil
}

// Save delegates to the event-sourced repository's Save, then writes a
// snapshot of the resulting aggregate state. A snapshot repository
// decorated with SnapshotRepositoryWithPolicy gates whether this write
// actually lands.
func (r *SnapshottingAggregateRepository[A, C, E]) Save(ctx context.Context, aggregate A, events []E, evtCtx EventContext) ([]EventEnvelope[E], error) {
	envelopes, err := r.eventSourced.Save(ctx, aggregate, events, evtCtx)
	if err != nil {
		return nil, err
	}

	snapshot, err := r.encodeState(aggregate)
	if err != nil {
		return envelopes, nil
	}
	_ = r.snapshots.Save(ctx, snapshot)

	return envelopes, nil
}
