// Package service implements the command side: it folds aggregates
// from the event store, handles commands, persists the resulting
// events, and publishes them on the durable bus.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/port/eventstore"
)

// saveAndPublish appends evs at expectedVersion and then publishes each
// one on the durable bus. The store commit is the source of truth: a
// publish failure propagates to the caller, but the persisted events
// stay committed and the read models catch up when the stream is
// replayed.
func saveAndPublish(ctx context.Context, store eventstore.Store, pub eventbus.Publisher,
	metrics *otel.Metrics, aggregateID string, expectedVersion uint64, evs []event.Event) error {

	if err := store.Save(ctx, aggregateID, expectedVersion, evs); err != nil {
		if domain.IsConcurrency(err) && metrics != nil {
			metrics.CommandConflicts.Add(ctx, 1)
		}
		return err
	}
	if metrics != nil {
		metrics.EventsAppended.Add(ctx, int64(len(evs)))
	}

	for i, ev := range evs {
		data, err := event.Encode(ev)
		if err != nil {
			return err
		}
		env := eventbus.Envelope{
			AggregateID: aggregateID,
			Sequence:    expectedVersion + uint64(i) + 1,
			Type:        data.Type,
			Payload:     data.Payload,
		}
		if err := pub.Publish(ctx, eventbus.SubjectFor(data.Type), env); err != nil {
			slog.Error("publish after commit failed",
				"aggregate_id", aggregateID, "sequence", env.Sequence,
				"event_type", data.Type, "error", err)
			return fmt.Errorf("publish %s/%d: %w", aggregateID, env.Sequence, err)
		}
	}
	return nil
}

// observeCommand counts a completed command and records how long it
// took, measured from start.
func observeCommand(ctx context.Context, m *otel.Metrics, start time.Time) {
	if m == nil {
		return
	}
	m.CommandsExecuted.Add(ctx, 1)
	m.CommandDuration.Record(ctx, time.Since(start).Seconds())
}

// decodeStream turns stored events back into typed domain events.
func decodeStream(stored []eventstore.StoredEvent) ([]event.Event, error) {
	evs := make([]event.Event, 0, len(stored))
	for _, se := range stored {
		ev, err := event.Decode(se.Type, se.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%d: %w", se.AggregateID, se.Sequence, err)
		}
		evs = append(evs, ev)
	}
	return evs, nil
}
