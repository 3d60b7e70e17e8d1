package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
)

func TestSaveAndLoad(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	err := store.Save(ctx, "tenant-1", 0, []event.Event{
		event.TenantCreated{TenantID: "tenant-1", Name: "Test VA", Timestamp: time.Now().UTC()},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	evs, err := store.Load(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].Sequence != 1 || evs[0].Type != event.TypeTenantCreated {
		t.Fatalf("unexpected stored event %+v", evs[0])
	}
}

func TestLoadMissingAggregate(t *testing.T) {
	store := NewEventStore()
	evs, err := store.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("expected empty stream, got %d", len(evs))
	}
}

func TestSaveConcurrencyConflict(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	ev := []event.Event{event.UserRegistered{
		UserID: "user-1", Username: "alice", Email: "a@example.com",
		Role: "PlatformAdmin", Timestamp: time.Now().UTC(),
	}}
	if err := store.Save(ctx, "user-1", 0, ev); err != nil {
		t.Fatalf("save: %v", err)
	}

	err := store.Save(ctx, "user-1", 0, ev)
	if !domain.IsConcurrency(err) {
		t.Fatalf("expected concurrency error, got %v", err)
	}

	evs, _ := store.Load(ctx, "user-1")
	if len(evs) != 1 {
		t.Fatalf("losing write leaked: %d events", len(evs))
	}
}

func TestSaveSequencesAreContiguous(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	now := time.Now().UTC()
	if err := store.Save(ctx, "user-1", 0, []event.Event{
		event.UserRegistered{UserID: "user-1", Username: "a", Email: "a@example.com", Role: "PlatformAdmin", Timestamp: now},
		event.PasswordChanged{UserID: "user-1", Timestamp: now},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "user-1", 2, []event.Event{
		event.UserLoggedIn{UserID: "user-1", Timestamp: now},
	}); err != nil {
		t.Fatalf("save second batch: %v", err)
	}

	evs, _ := store.Load(ctx, "user-1")
	for i, ev := range evs {
		if ev.Sequence != uint64(i)+1 {
			t.Fatalf("sequence[%d] = %d", i, ev.Sequence)
		}
	}
}

func TestSaveRacingWritersExactlyOneWins(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.Save(ctx, "tenant-1", 0, []event.Event{
				event.TenantCreated{TenantID: "tenant-1", Name: "VA", Timestamp: time.Now().UTC()},
			})
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !domain.IsConcurrency(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
