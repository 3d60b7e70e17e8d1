package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/user"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/port/eventstore"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// ErrInvalidCredentials is returned on any login failure so callers
// cannot distinguish an unknown user from a wrong password.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

// RegisterRequest carries the input for user registration.
type RegisterRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	TenantID *string `json:"tenant_id,omitempty"`
}

// GeneratedApiKey is returned once at creation time; the raw key is
// never stored and cannot be retrieved again.
type GeneratedApiKey struct {
	KeyID  string `json:"key_id"`
	Name   string `json:"name"`
	RawKey string `json:"api_key"`
}

// UserService handles user commands and queries.
type UserService struct {
	store   eventstore.Store
	bus     eventbus.Publisher
	reads   readmodel.Store
	cfg     *config.Auth
	metrics *otel.Metrics
}

// NewUserService creates a new user service.
func NewUserService(store eventstore.Store, bus eventbus.Publisher, reads readmodel.Store, cfg *config.Auth, metrics *otel.Metrics) *UserService {
	return &UserService{store: store, bus: bus, reads: reads, cfg: cfg, metrics: metrics}
}

// load folds the user aggregate from its stream.
func (s *UserService) load(ctx context.Context, userID string) (*user.User, error) {
	stored, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	evs, err := decodeStream(stored)
	if err != nil {
		return nil, err
	}
	agg := user.New()
	for _, ev := range evs {
		agg.Apply(ev)
	}
	return agg, nil
}

// execute runs one command against the user aggregate and persists the result.
func (s *UserService) execute(ctx context.Context, name, userID string, cmd user.Command) error {
	start := time.Now()
	ctx, span := otel.StartCommandSpan(ctx, name, userID)
	defer span.End()

	agg, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	evs, err := agg.Handle(cmd)
	if err != nil {
		return err
	}
	if err := saveAndPublish(ctx, s.store, s.bus, s.metrics, userID, agg.Version(), evs); err != nil {
		return err
	}
	observeCommand(ctx, s.metrics, start)
	return nil
}

// Register creates a new user with a bcrypt-hashed password and
// returns the new user's id.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	id := uuid.New().String()
	err = s.execute(ctx, "user.register", id, user.Register{
		UserID:       id,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         user.Role(req.Role),
		TenantID:     req.TenantID,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ChangePassword verifies the current password and replaces it.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.reads.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.execute(ctx, "user.change_password", userID, user.ChangePassword{
		UserID: userID, NewPasswordHash: string(hash),
	})
}

// GenerateApiKey mints a new API key for the user. The raw key is
// returned exactly once; only its SHA-256 hash is persisted.
func (s *UserService) GenerateApiKey(ctx context.Context, userID, name string) (*GeneratedApiKey, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	rawKey := "ak_" + hex.EncodeToString(raw)
	keyID := uuid.New().String()

	err := s.execute(ctx, "user.generate_api_key", userID, user.GenerateApiKey{
		UserID:     userID,
		KeyID:      keyID,
		KeyName:    name,
		ApiKeyHash: HashApiKey(rawKey),
	})
	if err != nil {
		return nil, err
	}
	return &GeneratedApiKey{KeyID: keyID, Name: name, RawKey: rawKey}, nil
}

// RevokeApiKey removes the named key from the user's key set.
func (s *UserService) RevokeApiKey(ctx context.Context, userID, keyID string) error {
	return s.execute(ctx, "user.revoke_api_key", userID, user.RevokeApiKey{
		UserID: userID, KeyID: keyID,
	})
}

// Login verifies the username and password against the read model and
// records the login on the user's stream.
func (s *UserService) Login(ctx context.Context, username, password string) (*readmodel.User, error) {
	u, err := s.reads.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.execute(ctx, "user.login", u.ID, user.Login{UserID: u.ID}); err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns the user read model row.
func (s *UserService) Get(ctx context.Context, id string) (*readmodel.User, error) {
	return s.reads.GetUser(ctx, id)
}

// ListApiKeys returns the user's keys (hashes omitted from JSON).
func (s *UserService) ListApiKeys(ctx context.Context, userID string) ([]readmodel.ApiKey, error) {
	return s.reads.ListApiKeys(ctx, userID)
}

// HashApiKey returns the hex SHA-256 digest of a raw API key.
func HashApiKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
