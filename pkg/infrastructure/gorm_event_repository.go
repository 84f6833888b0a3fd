package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pericarp/es/pkg/domain"
)

// eventRecord is the GORM schema for one persisted SerializedEvent. Field
// names mirror SerializedEvent directly so Save/scan are a plain struct
// copy rather than a field-by-field remap.
type eventRecord struct {
	EventID          string `gorm:"primaryKey"`
	EventType        string `gorm:"index"`
	EventVersion     int
	AggregateID      string `gorm:"index:idx_agg_version"`
	AggregateType    string `gorm:"index"`
	AggregateVersion int    `gorm:"index:idx_agg_version,unique"`
	CorrelationID    string
	CausationID      string
	ActorType        string
	ActorID          string
	OccurredAt       int64 // unix nanos, avoids driver-specific timestamp precision loss
	Payload          string `gorm:"type:text"`
	Context          string `gorm:"type:text"`
}

func (eventRecord) TableName() string { return "events" }

// GormEventRepository implements domain.EventRepository against any GORM
// dialector (sqlite for development, postgres for production). The
// (aggregate_id, aggregate_version) unique index is what turns a
// version-conflicting batch insert into the driver's constraint-violation
// error, which toVersionConflict below translates to a domain.Error.
type GormEventRepository struct {
	db              *gorm.DB
	batchSize       int
	maxEventHistory int
	queryTimeout    time.Duration
}

// NewGormEventRepository auto-migrates the events table and returns the
// repository, tuned by config (batch insert size, history cap, query
// timeout). A zero config falls back to the teacher's original fixed
// defaults.
func NewGormEventRepository(db *gorm.DB, config EventStoreConfig) (*GormEventRepository, error) {
	if err := db.AutoMigrate(&eventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate events table: %w", err)
	}
	if config.EnableQueryOptimization {
		db = db.Session(&gorm.Session{PrepareStmt: true})
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &GormEventRepository{
		db:              db,
		batchSize:       batchSize,
		maxEventHistory: config.MaxEventHistory,
		queryTimeout:    config.QueryTimeout,
	}, nil
}

func toEventRecord(e domain.SerializedEvent) eventRecord {
	return eventRecord{
		EventID:          e.EventID,
		EventType:        e.EventType,
		EventVersion:     e.EventVersion,
		AggregateID:      e.AggregateID,
		AggregateType:    e.AggregateType,
		AggregateVersion: e.AggregateVersion,
		CorrelationID:    e.CorrelationID,
		CausationID:      e.CausationID,
		ActorType:        e.ActorType,
		ActorID:          e.ActorID,
		OccurredAt:       e.OccurredAt.UnixNano(),
		Payload:          string(e.Payload),
		Context:          string(e.Context),
	}
}

func fromEventRecord(r eventRecord) domain.SerializedEvent {
	return domain.SerializedEvent{
		EventID:          r.EventID,
		EventType:        r.EventType,
		EventVersion:     r.EventVersion,
		AggregateID:      r.AggregateID,
		AggregateType:    r.AggregateType,
		AggregateVersion: r.AggregateVersion,
		CorrelationID:    r.CorrelationID,
		CausationID:      r.CausationID,
		ActorType:        r.ActorType,
		ActorID:          r.ActorID,
		OccurredAt:       unixNanoToTime(r.OccurredAt),
		Payload:          json.RawMessage(r.Payload),
		Context:          json.RawMessage(r.Context),
	}
}

// GetEvents returns every event for aggregateID in append order.
func (s *GormEventRepository) GetEvents(ctx context.Context, aggregateID string) ([]domain.SerializedEvent, error) {
	return s.GetLastEvents(ctx, aggregateID, 0)
}

// GetLastEvents returns events strictly after lastVersion, in append order,
// capped at maxEventHistory rows when configured.
func (s *GormEventRepository) GetLastEvents(ctx context.Context, aggregateID string, lastVersion int) ([]domain.SerializedEvent, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	query := s.db.WithContext(ctx).
		Where("aggregate_id = ? AND aggregate_version > ?", aggregateID, lastVersion).
		Order("aggregate_version ASC")
	if s.maxEventHistory > 0 {
		query = query.Limit(s.maxEventHistory)
	}

	var records []eventRecord
	err := query.Find(&records).Error
	if err != nil {
		return nil, domain.NewSerializationError(fmt.Errorf("load events for aggregate %s: %w", aggregateID, err))
	}

	out := make([]domain.SerializedEvent, len(records))
	for i, r := range records {
		out[i] = fromEventRecord(r)
	}
	return out, nil
}

// Save persists a batch atomically; a unique-constraint violation on
// (aggregate_id, aggregate_version) is the optimistic concurrency check and
// is surfaced as a domain.Error with KindConflict.
func (s *GormEventRepository) Save(ctx context.Context, events []domain.SerializedEvent) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]eventRecord, len(events))
	for i, e := range events {
		records[i] = toEventRecord(e)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&records, s.batchSize).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			aggregateID := events[0].AggregateID
			return domain.NewVersionConflict(aggregateID, events[0].AggregateVersion-1, events[0].AggregateVersion)
		}
		return domain.NewSerializationError(fmt.Errorf("save events: %w", err))
	}
	return nil
}

// unixNanoToTime converts the zero-allocation int64 column back to a
// time.Time, preserving the UTC location SerializedEvent times are always
// constructed with.
func unixNanoToTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// isUniqueConstraintError reports whether err is a unique-index violation.
// gorm's driver error translation (gorm.ErrDuplicatedKey) requires opting in
// via Config.TranslateError, so this also recognizes the raw sqlite and
// postgres driver messages directly.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
