package tenant

import (
	"errors"
	"testing"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
)

func TestCreate(t *testing.T) {
	agg := New()
	evs, err := agg.Handle(Create{TenantID: "tenant-1", Name: "Albatross Air"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	ev, ok := evs[0].(event.TenantCreated)
	if !ok {
		t.Fatalf("expected TenantCreated, got %T", evs[0])
	}
	if ev.TenantID != "tenant-1" || ev.Name != "Albatross Air" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestCreateAlreadyExists(t *testing.T) {
	agg := New()
	agg.Apply(event.TenantCreated{TenantID: "tenant-1", Name: "Existing"})

	_, err := agg.Handle(Create{TenantID: "tenant-2", Name: "New"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		cmd  Create
	}{
		{"empty id", Create{Name: "Albatross Air"}},
		{"empty name", Create{TenantID: "tenant-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Handle(tt.cmd)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	agg := New()
	if agg.Version() != 0 {
		t.Fatalf("fresh aggregate version = %d", agg.Version())
	}
	agg.Apply(event.TenantCreated{TenantID: "tenant-1", Name: "Applied"})
	if agg.Version() != 1 {
		t.Fatalf("expected version 1, got %d", agg.Version())
	}
	if agg.AggregateID() != "tenant-1" || agg.Name() != "Applied" {
		t.Errorf("unexpected state: id=%s name=%s", agg.AggregateID(), agg.Name())
	}
}
