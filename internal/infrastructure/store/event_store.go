package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// EventRecord is the events table row.
type EventRecord struct {
	ID            string     `gorm:"primaryKey;type:uuid"`
	AggregateID   string     `gorm:"not null;uniqueIndex:idx_events_aggregate_version"`
	AggregateType string     `gorm:"not null"`
	EventType     string     `gorm:"not null"`
	Data          string     `gorm:"type:jsonb;not null"`
	Version       int        `gorm:"not null;uniqueIndex:idx_events_aggregate_version"`
	CreatedAt     time.Time  `gorm:"not null"`
	PublishedAt   *time.Time `gorm:"index"`
}

func (EventRecord) TableName() string { return "events" }

func (r EventRecord) toEvent() Event {
	return Event{
		ID:            r.ID,
		AggregateID:   r.AggregateID,
		AggregateType: r.AggregateType,
		EventType:     r.EventType,
		Data:          json.RawMessage(r.Data),
		Timestamp:     r.CreatedAt,
		Version:       r.Version,
	}
}

// EventStore appends events to PostgreSQL. Rows start unpublished and are
// shipped to kafka by an OutboxRelay.
type EventStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewEventStore(db *gorm.DB, logger *zap.Logger) *EventStore {
	return &EventStore{
		db:     db,
		logger: logger.Named("events"),
	}
}

// Append stores an event with the next version for its aggregate. It never
// talks to the broker.
func (es *EventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}

	rec := EventRecord{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          string(jsonData),
		CreatedAt:     time.Now().UTC(),
	}

	err = es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int
		if err := tx.Model(&EventRecord{}).
			Where("aggregate_id = ?", aggregateID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error; err != nil {
			return err
		}
		rec.Version = current + 1
		return tx.Create(&rec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", eventType, err)
	}

	event := rec.toEvent()
	es.logger.Debug("event appended",
		zap.String("aggregate_id", aggregateID),
		zap.String("event_type", eventType),
		zap.Int("version", event.Version),
	)
	return &event, nil
}

// GetEvents returns all events for an aggregate in version order
func (es *EventStore) GetEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	var recs []EventRecord
	if err := es.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("version ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(recs))
	for _, r := range recs {
		events = append(events, r.toEvent())
	}
	return events, nil
}
