package infrastructure

import (
	"context"
	"sync"

	"github.com/pericarp/es/pkg/domain"
)

// MemorySnapshotRepository is an in-memory domain.SnapshotRepository,
// keeping only the latest snapshot per aggregate (a real store would keep
// every snapshot version for GetSnapshot's maxVersion parameter; this one
// only ever has the latest to compare against, which is sufficient for
// tests and the demo wiring).
type MemorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]domain.SerializedSnapshot
}

// NewMemorySnapshotRepository constructs an empty repository.
func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{snapshots: make(map[string]domain.SerializedSnapshot)}
}

// GetSnapshot returns the stored snapshot if its version is <= maxVersion
// (when maxVersion is non-nil), else (nil, nil).
func (r *MemorySnapshotRepository) GetSnapshot(_ context.Context, aggregateID string, maxVersion *int) (*domain.SerializedSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	if maxVersion != nil && s.AggregateVersion > *maxVersion {
		return nil, nil
	}
	return &s, nil
}

// Save overwrites the stored snapshot for the aggregate.
func (r *MemorySnapshotRepository) Save(_ context.Context, snapshot domain.SerializedSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshot.AggregateID] = snapshot
	return nil
}
