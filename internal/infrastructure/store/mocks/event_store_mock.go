// Package mocks holds in-memory doubles of the store interfaces.
package mocks

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
)

var _ store.EventStoreInterface = (*EventStore)(nil)

// AppendCall is one recorded Append. Data is the value as passed, before
// encoding, so tests can type-assert the payload.
type AppendCall struct {
	AggregateID   string
	AggregateType string
	EventType     string
	Data          any
}

// EventStore keeps events in memory and records every Append, including
// the ones AppendErr rejects.
type EventStore struct {
	mu     sync.Mutex
	stored []store.Event

	AppendCalls []AppendCall
	AppendErr   error
	GetErr      error
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (m *EventStore) Append(_ context.Context, aggregateID, aggregateType, eventType string, data any) (*store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls = append(m.AppendCalls, AppendCall{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          data,
	})
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	ev := store.Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now().UTC(),
		Version:       m.countFor(aggregateID) + 1,
	}
	m.stored = append(m.stored, ev)
	return &ev, nil
}

func (m *EventStore) GetEvents(_ context.Context, aggregateID string) ([]store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	var out []store.Event
	for _, ev := range m.stored {
		if ev.AggregateID == aggregateID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// EventTypes lists recorded event types in call order.
func (m *EventStore) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, len(m.AppendCalls))
	for i, c := range m.AppendCalls {
		types[i] = c.EventType
	}
	return types
}

// Recorded reports whether an event of eventType was appended for aggregateID.
func (m *EventStore) Recorded(aggregateID, eventType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.AppendCalls, func(c AppendCall) bool {
		return c.AggregateID == aggregateID && c.EventType == eventType
	})
}

// Reset forgets stored events and recorded calls. Error hooks are cleared too.
func (m *EventStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = nil
	m.AppendCalls = nil
	m.AppendErr = nil
	m.GetErr = nil
}

func (m *EventStore) countFor(aggregateID string) int {
	n := 0
	for _, ev := range m.stored {
		if ev.AggregateID == aggregateID {
			n++
		}
	}
	return n
}
