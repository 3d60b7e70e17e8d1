package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/domain/pirep"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/port/eventstore"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// SubmitPirepRequest carries the input for a flight report submission.
type SubmitPirepRequest struct {
	TenantID        string  `json:"tenant_id"`
	UserID          string  `json:"user_id"`
	AircraftID      string  `json:"aircraft_id"`
	DepartureICAO   string  `json:"departure_icao"`
	ArrivalICAO     string  `json:"arrival_icao"`
	FlightNumber    string  `json:"flight_number"`
	FlightTimeHours float64 `json:"flight_time_hours"`
	Remarks         string  `json:"remarks"`
}

// PirepService handles flight report commands and queries.
type PirepService struct {
	store   eventstore.Store
	bus     eventbus.Publisher
	reads   readmodel.Store
	metrics *otel.Metrics
}

// NewPirepService creates a new pirep service.
func NewPirepService(store eventstore.Store, bus eventbus.Publisher, reads readmodel.Store, metrics *otel.Metrics) *PirepService {
	return &PirepService{store: store, bus: bus, reads: reads, metrics: metrics}
}

// Submit records a new flight report and returns its id.
func (s *PirepService) Submit(ctx context.Context, req SubmitPirepRequest) (string, error) {
	id := uuid.New().String()
	start := time.Now()
	ctx, span := otel.StartCommandSpan(ctx, "pirep.submit", id)
	defer span.End()

	agg := pirep.New()
	evs, err := agg.Handle(pirep.Submit{
		PirepID:         id,
		TenantID:        req.TenantID,
		UserID:          req.UserID,
		AircraftID:      req.AircraftID,
		DepartureICAO:   req.DepartureICAO,
		ArrivalICAO:     req.ArrivalICAO,
		FlightNumber:    req.FlightNumber,
		FlightTimeHours: req.FlightTimeHours,
		Remarks:         req.Remarks,
	})
	if err != nil {
		return "", fmt.Errorf("submit pirep: %w", err)
	}

	if err := saveAndPublish(ctx, s.store, s.bus, s.metrics, id, 0, evs); err != nil {
		return "", err
	}
	observeCommand(ctx, s.metrics, start)
	return id, nil
}

// Get returns one flight report.
func (s *PirepService) Get(ctx context.Context, id string) (*readmodel.Pirep, error) {
	return s.reads.GetPirep(ctx, id)
}

// ListByTenant returns a tenant's flight reports, newest first.
func (s *PirepService) ListByTenant(ctx context.Context, tenantID string) ([]readmodel.Pirep, error) {
	return s.reads.ListPirepsByTenant(ctx, tenantID)
}

// ListByUser returns a pilot's flight reports, newest first.
func (s *PirepService) ListByUser(ctx context.Context, userID string) ([]readmodel.Pirep, error) {
	return s.reads.ListPirepsByUser(ctx, userID)
}
