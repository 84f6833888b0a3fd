package domain

import "context"

// EventRepository is the append-only, per-aggregate-ordered event storage
// port. Implementations must preserve append order, provide at-least-once
// reads (no lost writes), and detect per-aggregate version conflicts —
// typically via a unique (aggregate_id, aggregate_version) constraint —
// surfacing them as a *Error with KindConflict that this module never
// retries internally.
type EventRepository interface {
	// GetEvents returns all events for the aggregate, in append order.
	GetEvents(ctx context.Context, aggregateID string) ([]SerializedEvent, error)

	// GetLastEvents returns events strictly after lastVersion, in append
	// order.
	GetLastEvents(ctx context.Context, aggregateID string, lastVersion int) ([]SerializedEvent, error)

	// Save persists a batch atomically (all or none). Every event in the
	// batch must share AggregateID.
	Save(ctx context.Context, events []SerializedEvent) error
}

// SnapshotRepository is the per-aggregate snapshot storage port.
type SnapshotRepository interface {
	// GetSnapshot returns the latest snapshot whose AggregateVersion is
	// <= maxVersion if maxVersion is non-nil, else the latest snapshot.
	// Returns (nil, nil) when no snapshot exists.
	GetSnapshot(ctx context.Context, aggregateID string, maxVersion *int) (*SerializedSnapshot, error)

	// Save persists a snapshot of the aggregate's current state.
	Save(ctx context.Context, snapshot SerializedSnapshot) error
}

// SnapshotPolicy decides whether a given aggregate version warrants taking
// a new snapshot.
type SnapshotPolicy interface {
	ShouldSnapshot(version int) bool
}

// NeverSnapshot never saves a snapshot.
type NeverSnapshot struct{}

// ShouldSnapshot always reports false.
func (NeverSnapshot) ShouldSnapshot(int) bool { return false }

// EverySnapshot saves a snapshot every N versions, N clamped to >= 1.
type EverySnapshot struct {
	N int
}

// ShouldSnapshot reports true iff version > 0 and version is a multiple of
// the clamped interval.
func (e EverySnapshot) ShouldSnapshot(version int) bool {
	interval := e.N
	if interval < 1 {
		interval = 1
	}
	return version > 0 && version%interval == 0
}

// SnapshotRepositoryWithPolicy decorates a SnapshotRepository, gating Save
// by a SnapshotPolicy while passing reads through unchanged.
type SnapshotRepositoryWithPolicy struct {
	inner  SnapshotRepository
	policy SnapshotPolicy
}

// NewSnapshotRepositoryWithPolicy builds the decorator.
func NewSnapshotRepositoryWithPolicy(inner SnapshotRepository, policy SnapshotPolicy) *SnapshotRepositoryWithPolicy {
	return &SnapshotRepositoryWithPolicy{inner: inner, policy: policy}
}

// GetSnapshot delegates unchanged.
func (r *SnapshotRepositoryWithPolicy) GetSnapshot(ctx context.Context, aggregateID string, maxVersion *int) (*SerializedSnapshot, error) {
	return r.inner.GetSnapshot(ctx, aggregateID, maxVersion)
}

// Save persists only when the policy fires for the snapshot's version.
func (r *SnapshotRepositoryWithPolicy) Save(ctx context.Context, snapshot SerializedSnapshot) error {
	if !r.policy.ShouldSnapshot(snapshot.AggregateVersion) {
		return nil
	}
	return r.inner.Save(ctx, snapshot)
}
