// Package pirep implements the Pirep aggregate: a pilot flight report,
// submitted exactly once.
package pirep

import (
	"fmt"
	"time"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
)

// Submit is the only command the Pirep aggregate handles.
type Submit struct {
	PirepID         string
	TenantID        string
	UserID          string
	AircraftID      string
	DepartureICAO   string
	ArrivalICAO     string
	FlightNumber    string
	FlightTimeHours float64
	Remarks         string
}

// Pirep is the aggregate state.
type Pirep struct {
	id       string
	version  uint64
	tenantID string
	userID   string
}

// New returns an empty Pirep aggregate at version 0.
func New() *Pirep {
	return &Pirep{}
}

// AggregateID returns the pirep id, empty until the first event is applied.
func (p *Pirep) AggregateID() string { return p.id }

// Version returns the count of events ever applied.
func (p *Pirep) Version() uint64 { return p.version }

// Apply folds one event into the aggregate state.
func (p *Pirep) Apply(ev event.Event) {
	if e, ok := ev.(event.PirepSubmitted); ok {
		p.id = e.PirepID
		p.tenantID = e.TenantID
		p.userID = e.UserID
	}
	p.version++
}

// Handle validates cmd against current state and derives candidate events.
func (p *Pirep) Handle(cmd Submit) ([]event.Event, error) {
	if p.version > 0 {
		return nil, fmt.Errorf("pirep %s: %w", p.id, domain.ErrAlreadyExists)
	}
	if cmd.PirepID == "" || cmd.TenantID == "" || cmd.UserID == "" ||
		cmd.AircraftID == "" || cmd.DepartureICAO == "" || cmd.ArrivalICAO == "" {
		return nil, fmt.Errorf("%w: missing required fields", domain.ErrValidation)
	}
	if cmd.FlightTimeHours <= 0 {
		return nil, fmt.Errorf("%w: flight time must be positive", domain.ErrValidation)
	}

	return []event.Event{event.PirepSubmitted{
		PirepID:         cmd.PirepID,
		TenantID:        cmd.TenantID,
		UserID:          cmd.UserID,
		AircraftID:      cmd.AircraftID,
		DepartureICAO:   cmd.DepartureICAO,
		ArrivalICAO:     cmd.ArrivalICAO,
		FlightNumber:    cmd.FlightNumber,
		FlightTimeHours: cmd.FlightTimeHours,
		Remarks:         cmd.Remarks,
		Timestamp:       time.Now().UTC(),
	}}, nil
}
