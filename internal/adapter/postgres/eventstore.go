package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
	"github.com/albatross-va/albatross/internal/port/eventstore"
)

const uniqueViolation = "23505"

// EventStore implements eventstore.Store on the append-only events table.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Load returns all events for the aggregate in ascending sequence order.
func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]eventstore.StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT aggregate_id, sequence, event_type, payload
		 FROM events WHERE aggregate_id = $1 ORDER BY sequence ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", aggregateID, err)
	}
	defer rows.Close()

	var events []eventstore.StoredEvent
	for rows.Next() {
		var ev eventstore.StoredEvent
		if err := rows.Scan(&ev.AggregateID, &ev.Sequence, &ev.Type, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Save appends events in one transaction, failing with a
// *domain.ConcurrencyError if the stream moved past expectedVersion.
func (s *EventStore) Save(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the stream head so concurrent writers serialize here. A new
	// stream has no row to lock; the unique constraint on
	// (aggregate_id, sequence) still rejects the loser's insert.
	var current uint64
	err = tx.QueryRow(ctx,
		`SELECT sequence FROM events WHERE aggregate_id = $1
		 ORDER BY sequence DESC LIMIT 1 FOR UPDATE`, aggregateID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read stream head for %s: %w", aggregateID, err)
	}

	if current != expectedVersion {
		return &domain.ConcurrencyError{Expected: expectedVersion, Actual: current}
	}

	seq := expectedVersion
	for _, ev := range events {
		seq++
		data, err := event.Encode(ev)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO events (aggregate_id, sequence, event_type, payload)
			 VALUES ($1, $2, $3, $4)`,
			aggregateID, seq, string(data.Type), data.Payload)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				// A racing writer won the empty-stream race and has
				// committed, so its version is visible outside this
				// aborted transaction.
				return &domain.ConcurrencyError{
					Expected: expectedVersion,
					Actual:   s.committedHead(ctx, aggregateID),
				}
			}
			return fmt.Errorf("append event %s/%d: %w", aggregateID, seq, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// committedHead reads the stream's current version outside any
// transaction. Used to report the winner's version after a conflict;
// returns 0 if the read fails, since the conflict itself still stands.
func (s *EventStore) committedHead(ctx context.Context, aggregateID string) uint64 {
	var head uint64
	err := s.pool.QueryRow(ctx,
		`SELECT sequence FROM events WHERE aggregate_id = $1
		 ORDER BY sequence DESC LIMIT 1`, aggregateID).Scan(&head)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0
	}
	return head
}
