package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pericarp/es/pkg/domain"
)

// snapshotRecord is the GORM schema for one aggregate snapshot. Only the
// latest snapshot per aggregate is kept: Save overwrites in place rather
// than appending a history row, since loading only ever needs the newest
// snapshot at or below a requested version.
type snapshotRecord struct {
	AggregateID      string `gorm:"primaryKey"`
	AggregateType    string `gorm:"index"`
	AggregateVersion int
	Payload          string `gorm:"type:text"`
}

func (snapshotRecord) TableName() string { return "snapshots" }

// GormSnapshotRepository implements domain.SnapshotRepository against any
// GORM dialector.
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository auto-migrates the snapshots table and returns
// the repository.
func NewGormSnapshotRepository(db *gorm.DB) (*GormSnapshotRepository, error) {
	if err := db.AutoMigrate(&snapshotRecord{}); err != nil {
		return nil, fmt.Errorf("migrate snapshots table: %w", err)
	}
	return &GormSnapshotRepository{db: db}, nil
}

// GetSnapshot returns the stored snapshot for aggregateID if one exists and
// its version is <= maxVersion (when maxVersion is non-nil).
func (r *GormSnapshotRepository) GetSnapshot(ctx context.Context, aggregateID string, maxVersion *int) (*domain.SerializedSnapshot, error) {
	var record snapshotRecord
	err := r.db.WithContext(ctx).Where("aggregate_id = ?", aggregateID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domain.NewSerializationError(fmt.Errorf("load snapshot for aggregate %s: %w", aggregateID, err))
	}

	if maxVersion != nil && record.AggregateVersion > *maxVersion {
		return nil, nil
	}

	snapshot := domain.SerializedSnapshot{
		AggregateID:      record.AggregateID,
		AggregateType:    record.AggregateType,
		AggregateVersion: record.AggregateVersion,
		Payload:          json.RawMessage(record.Payload),
	}
	return &snapshot, nil
}

// Save upserts the snapshot row for its aggregate.
func (r *GormSnapshotRepository) Save(ctx context.Context, snapshot domain.SerializedSnapshot) error {
	record := snapshotRecord{
		AggregateID:      snapshot.AggregateID,
		AggregateType:    snapshot.AggregateType,
		AggregateVersion: snapshot.AggregateVersion,
		Payload:          string(snapshot.Payload),
	}

	var existing snapshotRecord
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", snapshot.AggregateID).
		Assign(record).
		FirstOrCreate(&existing).Error
	if err != nil {
		return domain.NewSerializationError(fmt.Errorf("save snapshot for aggregate %s: %w", snapshot.AggregateID, err))
	}
	return nil
}
