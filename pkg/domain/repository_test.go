package domain

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestSnapshotPolicyEveryAndNever(t *testing.T) {
	every3 := EverySnapshot{N: 3}
	cases := map[int]bool{0: false, 1: false, 2: false, 3: true, 4: false, 6: true}
	for version, want := range cases {
		if got := every3.ShouldSnapshot(version); got != want {
			t.Fatalf("Every(3).ShouldSnapshot(%d) = %v, want %v", version, got, want)
		}
	}

	never := NeverSnapshot{}
	for _, v := range []int{0, 1, 100} {
		if never.ShouldSnapshot(v) {
			t.Fatalf("Never.ShouldSnapshot(%d) = true, want false", v)
		}
	}

	clamped := EverySnapshot{N: 0}
	if !clamped.ShouldSnapshot(1) {
		t.Fatalf("N=0 should clamp to 1, so version 1 should snapshot")
	}
}

// memEventRepo is a minimal in-memory EventRepository fake for exercising
// the generic aggregate repositories, with per-aggregate optimistic
// concurrency detection matching the real port's contract.
type memEventRepo struct {
	mu     sync.Mutex
	events map[string][]SerializedEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string][]SerializedEvent)}
}

func (r *memEventRepo) GetEvents(_ context.Context, aggregateID string) ([]SerializedEvent, error) {
	return r.GetLastEvents(context.Background(), aggregateID, 0)
}

func (r *memEventRepo) GetLastEvents(_ context.Context, aggregateID string, lastVersion int) ([]SerializedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SerializedEvent
	for _, e := range r.events[aggregateID] {
		if e.AggregateVersion > lastVersion {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) Save(_ context.Context, events []SerializedEvent) error {
	if len(events) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	aggregateID := events[0].AggregateID
	existing := r.events[aggregateID]
	nextExpected := 0
	if len(existing) > 0 {
		nextExpected = existing[len(existing)-1].AggregateVersion
	}
	for _, e := range events {
		nextExpected++
		if e.AggregateVersion != nextExpected {
			return NewVersionConflict(aggregateID, nextExpected, e.AggregateVersion)
		}
	}
	r.events[aggregateID] = append(existing, events...)
	return nil
}

type countingSnapshotRepo struct {
	mu          sync.Mutex
	snapshots   map[string]SerializedSnapshot
	getCalls    int
	saveCalls   int
}

func newCountingSnapshotRepo() *countingSnapshotRepo {
	return &countingSnapshotRepo{snapshots: make(map[string]SerializedSnapshot)}
}

func (r *countingSnapshotRepo) GetSnapshot(_ context.Context, aggregateID string, _ *int) (*SerializedSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	s, ok := r.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *countingSnapshotRepo) Save(_ context.Context, snapshot SerializedSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	r.snapshots[snapshot.AggregateID] = snapshot
	return nil
}

func decodeCounterEvent(se SerializedEvent) (counterEvent, error) {
	var payload struct {
		Amount int `json:"amount"`
	}
	if _, err := DecodeTagged(se.Payload, &payload); err != nil {
		return counterEvent{}, err
	}
	return counterEvent{
		ID:         se.EventID,
		AggVersion: se.AggregateVersion,
		Amount:     payload.Amount,
		Subtract:   se.EventType == "counter.subtracted",
	}, nil
}

func encodeCounterSnapshot(c *Counter) (SerializedSnapshot, error) {
	payload, err := json.Marshal(struct {
		Value int `json:"value"`
	}{Value: c.value})
	if err != nil {
		return SerializedSnapshot{}, err
	}
	return SerializedSnapshot{
		AggregateID:      c.ID(),
		AggregateType:    c.AggregateType(),
		AggregateVersion: c.Version(),
		Payload:          payload,
	}, nil
}

func decodeCounterSnapshot(s SerializedSnapshot) (*Counter, error) {
	var payload struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(s.Payload, &payload); err != nil {
		return nil, err
	}
	c := NewCounter(s.AggregateID, s.AggregateVersion)
	c.value = payload.Value
	return c, nil
}

func TestEventStoreAggregateRepositorySaveAndLoad(t *testing.T) {
	ctx := context.Background()
	events := newMemEventRepo()
	repo := NewEventStoreAggregateRepository[*Counter, counterCommand, counterEvent](
		events, NewUpcasterChain(), "counter",
		func(id string, version int) *Counter { return NewCounter(id, version) },
		decodeCounterEvent,
	)

	agg := NewCounter("c-1", 0)
	produced, err := agg.Execute(addCmd(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range produced {
		agg.Apply(e)
	}
	if _, err := repo.Save(ctx, agg, produced, EventContext{}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, found, err := repo.Load(ctx, "c-1")
	if err != nil || !found {
		t.Fatalf("expected to find aggregate, err=%v found=%v", err, found)
	}
	if loaded.Version() != 1 || loaded.value != 5 {
		t.Fatalf("expected version 1 value 5, got version %d value %d", loaded.Version(), loaded.value)
	}

	_, found, err = repo.Load(ctx, "missing")
	if err != nil || found {
		t.Fatalf("expected not-found for unknown id, found=%v err=%v", found, err)
	}
}

func TestSnapshottingAggregateRepositoryAccelerates(t *testing.T) {
	ctx := context.Background()
	events := newMemEventRepo()
	snapshots := newCountingSnapshotRepo()
	eventSourced := NewEventStoreAggregateRepository[*Counter, counterCommand, counterEvent](
		events, NewUpcasterChain(), "counter",
		func(id string, version int) *Counter { return NewCounter(id, version) },
		decodeCounterEvent,
	)
	policy := NewSnapshotRepositoryWithPolicy(snapshots, EverySnapshot{N: 100})
	repo := NewSnapshottingAggregateRepository[*Counter, counterCommand, counterEvent](
		eventSourced, policy, "counter", decodeCounterSnapshot, encodeCounterSnapshot,
	)

	agg := NewCounter("c-1", 0)
	var allEvents []counterEvent
	for i := 0; i < 100; i++ {
		produced, err := agg.Execute(addCmd(1))
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
		for _, e := range produced {
			agg.Apply(e)
		}
		allEvents = append(allEvents, produced...)
	}
	if _, err := repo.Save(ctx, agg, allEvents, EventContext{}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if snapshots.saveCalls != 1 {
		t.Fatalf("expected exactly one snapshot save at version 100, got %d", snapshots.saveCalls)
	}

	for i := 0; i < 5; i++ {
		produced, err := agg.Execute(addCmd(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, e := range produced {
			agg.Apply(e)
		}
		if _, err := repo.Save(ctx, agg, produced, EventContext{}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	loaded, found, err := repo.Load(ctx, "c-1")
	if err != nil || !found {
		t.Fatalf("expected to find aggregate, err=%v found=%v", err, found)
	}
	if loaded.value != 105 || loaded.Version() != 105 {
		t.Fatalf("expected value 105 version 105, got value %d version %d", loaded.value, loaded.Version())
	}
}

func TestConflictingAppendSurfacesVersionConflict(t *testing.T) {
	ctx := context.Background()
	events := newMemEventRepo()
	se := SerializedEvent{AggregateID: "c-1", AggregateVersion: 1, EventType: "counter.added", Payload: json.RawMessage(`{}`)}
	if err := events.Save(ctx, []SerializedEvent{se}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conflicting := SerializedEvent{AggregateID: "c-1", AggregateVersion: 1, EventType: "counter.added", Payload: json.RawMessage(`{}`)}
	err := events.Save(ctx, []SerializedEvent{conflicting})
	if KindOf(err) != KindConflict {
		t.Fatalf("expected KindConflict, got %v", KindOf(err))
	}
}
