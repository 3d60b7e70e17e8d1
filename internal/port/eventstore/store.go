// Package eventstore defines the port interface for the append-only event store.
package eventstore

import (
	"context"

	"github.com/albatross-va/albatross/internal/domain/event"
)

// StoredEvent is one persisted event within an aggregate's stream.
// Sequence is 1-based and contiguous per aggregate.
type StoredEvent struct {
	AggregateID string     `json:"aggregate_id"`
	Sequence    uint64     `json:"sequence"`
	Type        event.Type `json:"event_type"`
	Payload     []byte     `json:"payload"`
}

// Store is the port interface for loading and appending aggregate streams.
type Store interface {
	// Load returns every event for the aggregate in ascending sequence
	// order. A missing aggregate yields an empty slice, not an error.
	Load(ctx context.Context, aggregateID string) ([]StoredEvent, error)

	// Save appends events atomically. expectedVersion is the sequence of
	// the last event the caller observed (0 for a new aggregate). If the
	// stream has moved past it, Save returns a *domain.ConcurrencyError
	// and persists nothing.
	Save(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) error
}
