package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/user"
	"github.com/albatross-va/albatross/internal/port/cache"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// KV bucket keys only allow [-/_=.a-zA-Z0-9], so the prefix uses a dot.
const credKeyPrefix = "cred."

// AuthService resolves API keys to principals, caching resolved
// credentials in the tiered cache to keep the hot path off Postgres.
type AuthService struct {
	reads readmodel.Store
	cache cache.Cache
	cfg   *config.Auth
}

// NewAuthService creates a new credential resolution service.
func NewAuthService(reads readmodel.Store, c cache.Cache, cfg *config.Auth) *AuthService {
	return &AuthService{reads: reads, cache: c, cfg: cfg}
}

// AuthenticateApiKey resolves a raw API key to its principal. Unknown
// and revoked keys return ErrInvalidCredentials.
func (s *AuthService) AuthenticateApiKey(ctx context.Context, rawKey string) (*Principal, error) {
	if rawKey == "" {
		return nil, ErrInvalidCredentials
	}
	hash := HashApiKey(rawKey)

	if data, ok, err := s.cache.Get(ctx, credKeyPrefix+hash); err == nil && ok {
		var p Principal
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	} else if err != nil {
		slog.Warn("credential cache read failed", "error", err)
	}

	u, err := s.reads.GetUserByApiKeyHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	p := principalFor(u)
	if data, err := json.Marshal(p); err == nil {
		if err := s.cache.Set(ctx, credKeyPrefix+hash, data, s.cfg.CredentialTTL); err != nil {
			slog.Warn("credential cache write failed", "error", err)
		}
	}
	return p, nil
}

// CreateSession mints an opaque bearer token for a freshly
// authenticated user. The token lives only in the credential cache and
// expires with the session TTL, so unlike API keys it never reaches
// the event log.
func (s *AuthService) CreateSession(ctx context.Context, u *readmodel.User) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := "st_" + hex.EncodeToString(raw)

	data, err := json.Marshal(principalFor(u))
	if err != nil {
		return "", fmt.Errorf("encoding session principal: %w", err)
	}
	if err := s.cache.Set(ctx, credKeyPrefix+HashApiKey(token), data, s.cfg.SessionTTL); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// InvalidateApiKey drops a key hash from the credential cache, used
// when the key is revoked.
func (s *AuthService) InvalidateApiKey(ctx context.Context, keyHash string) error {
	return s.cache.Delete(ctx, credKeyPrefix+keyHash)
}

func principalFor(u *readmodel.User) *Principal {
	return &Principal{
		UserID:   u.ID,
		Username: u.Username,
		Role:     user.Role(u.Role),
		TenantID: u.TenantID,
	}
}
