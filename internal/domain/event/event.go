// Package event defines the closed set of domain events and the single
// decode table shared by command handlers, the projection worker, and the
// realtime gateway.
package event

import "time"

// Type identifies the kind of domain event.
type Type string

const (
	TypeTenantCreated   Type = "TenantCreated"
	TypeUserRegistered  Type = "UserRegistered"
	TypePasswordChanged Type = "PasswordChanged"
	TypeApiKeyGenerated Type = "ApiKeyGenerated"
	TypeApiKeyRevoked   Type = "ApiKeyRevoked"
	TypeUserLoggedIn    Type = "UserLoggedIn"
	TypePirepSubmitted  Type = "PirepSubmitted"
)

// Event is implemented by every domain event variant.
type Event interface {
	EventType() Type
	AggregateID() string
}

// TenantCreated records the creation of a tenant (an airline).
type TenantCreated struct {
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

func (e TenantCreated) EventType() Type     { return TypeTenantCreated }
func (e TenantCreated) AggregateID() string { return e.TenantID }

// UserRegistered records a new user. The bcrypt password hash travels in
// the persisted event so the projection can serve logins from the read
// model; notification envelopes strip it before fan-out.
type UserRegistered struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	TenantID     *string   `json:"tenant_id,omitempty"`
	PasswordHash string    `json:"password_hash"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e UserRegistered) EventType() Type     { return TypeUserRegistered }
func (e UserRegistered) AggregateID() string { return e.UserID }

// PasswordChanged records a password change, carrying the new hash so
// the read model can serve subsequent logins.
type PasswordChanged struct {
	UserID          string    `json:"user_id"`
	NewPasswordHash string    `json:"new_password_hash"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e PasswordChanged) EventType() Type     { return TypePasswordChanged }
func (e PasswordChanged) AggregateID() string { return e.UserID }

// ApiKeyGenerated records a new API key. Only the hash is stored.
type ApiKeyGenerated struct {
	UserID     string    `json:"user_id"`
	KeyID      string    `json:"key_id"`
	KeyName    string    `json:"key_name"`
	ApiKeyHash string    `json:"api_key_hash"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e ApiKeyGenerated) EventType() Type     { return TypeApiKeyGenerated }
func (e ApiKeyGenerated) AggregateID() string { return e.UserID }

// ApiKeyRevoked records the revocation of an API key.
type ApiKeyRevoked struct {
	UserID    string    `json:"user_id"`
	KeyID     string    `json:"key_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ApiKeyRevoked) EventType() Type     { return TypeApiKeyRevoked }
func (e ApiKeyRevoked) AggregateID() string { return e.UserID }

// UserLoggedIn is an audit event emitted after successful authentication.
type UserLoggedIn struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e UserLoggedIn) EventType() Type     { return TypeUserLoggedIn }
func (e UserLoggedIn) AggregateID() string { return e.UserID }

// PirepSubmitted records a pilot flight report.
type PirepSubmitted struct {
	PirepID         string    `json:"pirep_id"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	AircraftID      string    `json:"aircraft_id"`
	DepartureICAO   string    `json:"departure_icao"`
	ArrivalICAO     string    `json:"arrival_icao"`
	FlightNumber    string    `json:"flight_number"`
	FlightTimeHours float64   `json:"flight_time_hours"`
	Remarks         string    `json:"remarks"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e PirepSubmitted) EventType() Type     { return TypePirepSubmitted }
func (e PirepSubmitted) AggregateID() string { return e.PirepID }
