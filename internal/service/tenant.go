package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/domain/tenant"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/port/eventstore"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// TenantService handles tenant commands and queries.
type TenantService struct {
	store   eventstore.Store
	bus     eventbus.Publisher
	reads   readmodel.Store
	metrics *otel.Metrics
}

// NewTenantService creates a new tenant service.
func NewTenantService(store eventstore.Store, bus eventbus.Publisher, reads readmodel.Store, metrics *otel.Metrics) *TenantService {
	return &TenantService{store: store, bus: bus, reads: reads, metrics: metrics}
}

// Create provisions a new tenant and returns its id.
func (s *TenantService) Create(ctx context.Context, name string) (string, error) {
	id := uuid.New().String()
	start := time.Now()
	ctx, span := otel.StartCommandSpan(ctx, "tenant.create", id)
	defer span.End()

	agg := tenant.New()
	evs, err := agg.Handle(tenant.Create{TenantID: id, Name: name})
	if err != nil {
		return "", fmt.Errorf("create tenant: %w", err)
	}

	if err := saveAndPublish(ctx, s.store, s.bus, s.metrics, id, 0, evs); err != nil {
		return "", err
	}
	observeCommand(ctx, s.metrics, start)
	return id, nil
}

// Get returns the tenant read model row.
func (s *TenantService) Get(ctx context.Context, id string) (*readmodel.Tenant, error) {
	return s.reads.GetTenant(ctx, id)
}

// List returns all tenants.
func (s *TenantService) List(ctx context.Context) ([]readmodel.Tenant, error) {
	return s.reads.ListTenants(ctx)
}
