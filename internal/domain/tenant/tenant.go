// Package tenant implements the Tenant aggregate. A tenant is an airline;
// it is created once and never modified through this aggregate.
package tenant

import (
	"fmt"
	"time"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
)

// Create is the only command the Tenant aggregate handles.
type Create struct {
	TenantID string
	Name     string
}

// Tenant is the aggregate state.
type Tenant struct {
	id      string
	version uint64
	name    string
}

// New returns an empty Tenant aggregate at version 0.
func New() *Tenant {
	return &Tenant{}
}

// AggregateID returns the tenant id, empty until the first event is applied.
func (t *Tenant) AggregateID() string { return t.id }

// Version returns the count of events ever applied.
func (t *Tenant) Version() uint64 { return t.version }

// Name returns the tenant display name.
func (t *Tenant) Name() string { return t.name }

// Apply folds one event into the aggregate state.
func (t *Tenant) Apply(ev event.Event) {
	if e, ok := ev.(event.TenantCreated); ok {
		t.id = e.TenantID
		t.name = e.Name
	}
	t.version++
}

// Handle validates cmd against current state and derives candidate events.
func (t *Tenant) Handle(cmd Create) ([]event.Event, error) {
	if t.version > 0 {
		return nil, fmt.Errorf("tenant %s: %w", t.id, domain.ErrAlreadyExists)
	}
	if cmd.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id cannot be empty", domain.ErrValidation)
	}
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: tenant name cannot be empty", domain.ErrValidation)
	}

	return []event.Event{event.TenantCreated{
		TenantID:  cmd.TenantID,
		Name:      cmd.Name,
		Timestamp: time.Now().UTC(),
	}}, nil
}
