package infrastructure

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pericarp/es/pkg/domain"
)

// snapshotRepository mirrors domain.SnapshotRepository's method set
// locally, same rationale as eventBus/eventDeliverer in the other
// decorator files.
type snapshotRepository interface {
	GetSnapshot(ctx context.Context, aggregateID string, maxVersion *int) (*domain.SerializedSnapshot, error)
	Save(ctx context.Context, snapshot domain.SerializedSnapshot) error
}

// CachingSnapshotRepository wraps a snapshotRepository with an in-process
// TTL cache, so a hot aggregate's repeated loads skip the store round-trip
// between snapshot intervals. Only unbounded reads (maxVersion == nil) are
// served from cache: a caller asking for a snapshot at or below a specific
// version is doing a point-in-time read the cache can't safely answer from
// its single "latest" entry.
type CachingSnapshotRepository struct {
	next  snapshotRepository
	cache *cache.Cache
}

// NewCachingSnapshotRepository wraps next with an entry TTL and cleanup
// interval.
func NewCachingSnapshotRepository(next snapshotRepository, ttl, cleanupInterval time.Duration) *CachingSnapshotRepository {
	return &CachingSnapshotRepository{
		next:  next,
		cache: cache.New(ttl, cleanupInterval),
	}
}

// GetSnapshot serves an unbounded read from cache when present, otherwise
// loads from next and populates the cache.
func (r *CachingSnapshotRepository) GetSnapshot(ctx context.Context, aggregateID string, maxVersion *int) (*domain.SerializedSnapshot, error) {
	if maxVersion == nil {
		if cached, ok := r.cache.Get(aggregateID); ok {
			snapshot := cached.(domain.SerializedSnapshot)
			return &snapshot, nil
		}
	}

	snapshot, err := r.next.GetSnapshot(ctx, aggregateID, maxVersion)
	if err != nil || snapshot == nil {
		return snapshot, err
	}

	if maxVersion == nil {
		r.cache.SetDefault(aggregateID, *snapshot)
	}
	return snapshot, nil
}

// Save writes through to next and refreshes the cached entry.
func (r *CachingSnapshotRepository) Save(ctx context.Context, snapshot domain.SerializedSnapshot) error {
	if err := r.next.Save(ctx, snapshot); err != nil {
		return err
	}
	r.cache.SetDefault(snapshot.AggregateID, snapshot)
	return nil
}
