// Package memstore provides in-memory implementations of the event
// store and read model ports, used for tests and single-node dev runs.
package memstore

import (
	"context"
	"sync"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
	"github.com/albatross-va/albatross/internal/port/eventstore"
)

// EventStore implements eventstore.Store with per-process maps. The
// save path holds one lock across the version check and the append, so
// the optimistic concurrency contract matches the Postgres store.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]eventstore.StoredEvent
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[string][]eventstore.StoredEvent)}
}

// Load returns a copy of the aggregate's stream in sequence order.
func (s *EventStore) Load(_ context.Context, aggregateID string) ([]eventstore.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	out := make([]eventstore.StoredEvent, len(stream))
	copy(out, stream)
	return out, nil
}

// Save appends events if the stream is still at expectedVersion.
func (s *EventStore) Save(_ context.Context, aggregateID string, expectedVersion uint64, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	encoded, err := event.EncodeAll(events)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := uint64(len(s.streams[aggregateID]))
	if current != expectedVersion {
		return &domain.ConcurrencyError{Expected: expectedVersion, Actual: current}
	}

	for i, d := range encoded {
		s.streams[aggregateID] = append(s.streams[aggregateID], eventstore.StoredEvent{
			AggregateID: aggregateID,
			Sequence:    expectedVersion + uint64(i) + 1,
			Type:        d.Type,
			Payload:     d.Payload,
		})
	}
	return nil
}
