package infrastructure

import (
	"context"
	"sync"

	"github.com/pericarp/es/pkg/domain"
)

// MemoryEventRepository is an in-memory domain.EventRepository. It is
// useful for tests and the demo wiring but loses all data across restarts,
// same tradeoff the eventsourcing memory store made before this package
// generalized beyond the User aggregate.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string][]domain.SerializedEvent
}

// NewMemoryEventRepository constructs an empty repository.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[string][]domain.SerializedEvent)}
}

// GetEvents returns every event ever appended for aggregateID, in order.
func (r *MemoryEventRepository) GetEvents(_ context.Context, aggregateID string) ([]domain.SerializedEvent, error) {
	return r.GetLastEvents(context.Background(), aggregateID, 0)
}

// GetLastEvents returns events strictly after lastVersion, in append order.
func (r *MemoryEventRepository) GetLastEvents(_ context.Context, aggregateID string, lastVersion int) ([]domain.SerializedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.SerializedEvent
	for _, e := range r.events[aggregateID] {
		if e.AggregateVersion > lastVersion {
			out = append(out, e)
		}
	}
	return out, nil
}

// Save appends a batch atomically, rejecting it in full if any event's
// AggregateVersion doesn't immediately follow the aggregate's current tail.
func (r *MemoryEventRepository) Save(_ context.Context, events []domain.SerializedEvent) error {
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
			return domain.NewVersionConflict(aggregateID, nextExpected, e.AggregateVersion)
		}
	}

	r.events[aggregateID] = append(existing, events...)
	return nil
}
