// Package user implements the User aggregate: registration, password
// changes, API key lifecycle, and login auditing.
package user

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
)

// Role represents the authorization level of a user.
type Role string

const (
	RolePlatformAdmin Role = "PlatformAdmin"
	RoleTenantAdmin   Role = "TenantAdmin"
	RolePilot         Role = "Pilot"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RolePlatformAdmin: true,
	RoleTenantAdmin:   true,
	RolePilot:         true,
}

// ErrTenantIDRequired is returned when a tenant-scoped role is registered
// without a tenant.
var ErrTenantIDRequired = fmt.Errorf("%w: tenant id is required for non-PlatformAdmin roles", domain.ErrValidation)

// ErrApiKeyNotFound is returned when revoking a key the user does not hold.
var ErrApiKeyNotFound = fmt.Errorf("api key: %w", domain.ErrNotFound)

// Command is the closed set of commands the User aggregate handles.
type Command interface{ isUserCommand() }

// Register creates the aggregate. PlatformAdmin users carry no tenant;
// every other role requires one.
type Register struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	TenantID     *string
}

// ChangePassword rotates the stored password hash.
type ChangePassword struct {
	UserID          string
	NewPasswordHash string
}

// GenerateApiKey adds a new API key. The key material is minted by the
// caller; the aggregate only sees the id and hash.
type GenerateApiKey struct {
	UserID     string
	KeyName    string
	KeyID      string
	ApiKeyHash string
}

// RevokeApiKey removes an existing API key.
type RevokeApiKey struct {
	UserID string
	KeyID  string
}

// Login records a successful authentication for auditing. Password
// verification happens before this command is issued.
type Login struct {
	UserID string
}

func (Register) isUserCommand()       {}
func (ChangePassword) isUserCommand() {}
func (GenerateApiKey) isUserCommand() {}
func (RevokeApiKey) isUserCommand()   {}
func (Login) isUserCommand()          {}

// User is the aggregate state, rebuilt by folding events in sequence order.
type User struct {
	id       string
	version  uint64
	username string
	email    string
	role     Role
	tenantID *string
	apiKeys  map[string]string // key_id -> key_hash
}

// New returns an empty User aggregate at version 0.
func New() *User {
	return &User{apiKeys: make(map[string]string)}
}

// AggregateID returns the user id, empty until the first event is applied.
func (u *User) AggregateID() string { return u.id }

// Version returns the count of events ever applied.
func (u *User) Version() uint64 { return u.version }

// Role returns the user's role.
func (u *User) Role() Role { return u.role }

// TenantID returns the user's tenant, nil for platform admins.
func (u *User) TenantID() *string { return u.tenantID }

// HasApiKey reports whether the user currently holds the given key id.
func (u *User) HasApiKey(keyID string) bool {
	_, ok := u.apiKeys[keyID]
	return ok
}

// Apply folds one event into the aggregate state. It is total: unknown
// event kinds only bump the version.
func (u *User) Apply(ev event.Event) {
	switch e := ev.(type) {
	case event.UserRegistered:
		u.id = e.UserID
		u.username = e.Username
		u.email = e.Email
		u.role = Role(e.Role)
		u.tenantID = e.TenantID
	case event.ApiKeyGenerated:
		u.apiKeys[e.KeyID] = e.ApiKeyHash
	case event.ApiKeyRevoked:
		delete(u.apiKeys, e.KeyID)
	case event.PasswordChanged, event.UserLoggedIn:
		// No aggregate state beyond the version.
	}
	u.version++
}

// Handle validates cmd against current state and derives candidate events.
// It never mutates the aggregate.
func (u *User) Handle(cmd Command) ([]event.Event, error) {
	if u.version == 0 {
		if _, ok := cmd.(Register); !ok {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
	}

	switch c := cmd.(type) {
	case Register:
		return u.handleRegister(c)
	case ChangePassword:
		return u.handleChangePassword(c)
	case GenerateApiKey:
		return u.handleGenerateApiKey(c)
	case RevokeApiKey:
		return u.handleRevokeApiKey(c)
	case Login:
		return u.handleLogin(c)
	default:
		return nil, fmt.Errorf("%w: unknown user command %T", domain.ErrValidation, cmd)
	}
}

func (u *User) handleRegister(c Register) ([]event.Event, error) {
	if u.version > 0 {
		return nil, fmt.Errorf("user %s: %w", u.id, domain.ErrAlreadyExists)
	}
	if c.UserID == "" || c.Username == "" || c.Email == "" || c.PasswordHash == "" {
		return nil, fmt.Errorf("%w: missing required fields", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}
	if !ValidRoles[c.Role] {
		return nil, fmt.Errorf("%w: invalid role %q", domain.ErrValidation, c.Role)
	}
	if c.Role != RolePlatformAdmin && c.TenantID == nil {
		return nil, ErrTenantIDRequired
	}
	if c.Role == RolePlatformAdmin && c.TenantID != nil {
		return nil, fmt.Errorf("%w: PlatformAdmin cannot belong to a tenant", domain.ErrValidation)
	}

	return []event.Event{event.UserRegistered{
		UserID:       c.UserID,
		Username:     c.Username,
		Email:        c.Email,
		Role:         string(c.Role),
		TenantID:     c.TenantID,
		PasswordHash: c.PasswordHash,
		Timestamp:    time.Now().UTC(),
	}}, nil
}

func (u *User) handleChangePassword(c ChangePassword) ([]event.Event, error) {
	if c.UserID != u.id {
		return nil, fmt.Errorf("user %s: %w", c.UserID, domain.ErrNotFound)
	}
	if c.NewPasswordHash == "" {
		return nil, fmt.Errorf("%w: new password hash cannot be empty", domain.ErrValidation)
	}

	return []event.Event{event.PasswordChanged{
		UserID:          c.UserID,
		NewPasswordHash: c.NewPasswordHash,
		Timestamp:       time.Now().UTC(),
	}}, nil
}

func (u *User) handleGenerateApiKey(c GenerateApiKey) ([]event.Event, error) {
	if c.UserID != u.id {
		return nil, fmt.Errorf("user %s: %w", c.UserID, domain.ErrNotFound)
	}
	if c.KeyID == "" || c.ApiKeyHash == "" {
		return nil, fmt.Errorf("%w: key id and hash are required", domain.ErrValidation)
	}
	if c.KeyName == "" {
		return nil, fmt.Errorf("%w: key name is required", domain.ErrValidation)
	}

	return []event.Event{event.ApiKeyGenerated{
		UserID:     c.UserID,
		KeyID:      c.KeyID,
		KeyName:    c.KeyName,
		ApiKeyHash: c.ApiKeyHash,
		Timestamp:  time.Now().UTC(),
	}}, nil
}

func (u *User) handleRevokeApiKey(c RevokeApiKey) ([]event.Event, error) {
	if c.UserID != u.id {
		return nil, fmt.Errorf("user %s: %w", c.UserID, domain.ErrNotFound)
	}
	if !u.HasApiKey(c.KeyID) {
		return nil, fmt.Errorf("%s: %w", c.KeyID, ErrApiKeyNotFound)
	}

	return []event.Event{event.ApiKeyRevoked{
		UserID:    c.UserID,
		KeyID:     c.KeyID,
		Timestamp: time.Now().UTC(),
	}}, nil
}

func (u *User) handleLogin(c Login) ([]event.Event, error) {
	if c.UserID != u.id {
		return nil, fmt.Errorf("user %s: %w", c.UserID, domain.ErrNotFound)
	}

	return []event.Event{event.UserLoggedIn{
		UserID:    c.UserID,
		Timestamp: time.Now().UTC(),
	}}, nil
}
