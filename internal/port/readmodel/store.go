// Package readmodel defines the port interface for the query-side store
// maintained by the projection worker.
package readmodel

import (
	"context"
	"time"
)

// Tenant is the read-model row for a tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the read-model row for a user. PasswordHash is never
// serialized; it backs credential lookups only.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	TenantID     *string    `json:"tenant_id,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// ApiKey is the read-model row for an API key. Only the hash is stored.
type ApiKey struct {
	KeyID     string    `json:"key_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Pirep is the read-model row for a submitted flight report.
type Pirep struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	AircraftID      string    `json:"aircraft_id"`
	DepartureICAO   string    `json:"departure_icao"`
	ArrivalICAO     string    `json:"arrival_icao"`
	FlightNumber    string    `json:"flight_number"`
	FlightTimeHours float64   `json:"flight_time_hours"`
	Remarks         string    `json:"remarks"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Store is the port interface for the read models. Writes are performed
// by the projection worker and must be idempotent so redeliveries
// converge on the same state.
type Store interface {
	UpsertTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)

	UpsertUser(ctx context.Context, u User) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
	SetLastLogin(ctx context.Context, userID string, at time.Time) error
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByUsername backs the login pipeline. Returns
	// domain.ErrNotFound when no such user exists.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	UpsertApiKey(ctx context.Context, k ApiKey) error
	DeleteApiKey(ctx context.Context, keyID string) error
	ListApiKeys(ctx context.Context, userID string) ([]ApiKey, error)

	// GetUserByApiKeyHash resolves an API key hash to its owner. Returns
	// domain.ErrNotFound when the hash is unknown or revoked.
	GetUserByApiKeyHash(ctx context.Context, keyHash string) (*User, error)

	UpsertPirep(ctx context.Context, p Pirep) error
	GetPirep(ctx context.Context, id string) (*Pirep, error)
	ListPirepsByTenant(ctx context.Context, tenantID string) ([]Pirep, error)
	ListPirepsByUser(ctx context.Context, userID string) ([]Pirep, error)
}
