package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/albatross-va/albatross/internal/adapter/memstore"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/middleware"
	"github.com/albatross-va/albatross/internal/port/readmodel"
	"github.com/albatross-va/albatross/internal/service"
)

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache { return &memCache{items: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

const rawKey = "ak_middleware_test_key"

func newTestAuthSvc(t *testing.T) *service.AuthService {
	t.Helper()

	reads := memstore.NewReadModel()
	tenantID := "t1"
	if err := reads.UpsertUser(context.Background(), readmodel.User{
		ID:       "u1",
		Username: "amelia",
		Role:     "Pilot",
		TenantID: &tenantID,
	}); err != nil {
		t.Fatal(err)
	}
	if err := reads.UpsertApiKey(context.Background(), readmodel.ApiKey{
		KeyID:   "k1",
		UserID:  "u1",
		KeyHash: service.HashApiKey(rawKey),
	}); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Auth{BcryptCost: 4, CredentialTTL: time.Minute}
	return service.NewAuthService(reads, newMemCache(), cfg)
}

func TestAuthNoHeaderReturns401(t *testing.T) {
	handler := middleware.Auth(newTestAuthSvc(t))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pireps", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthPublicPathsSkipped(t *testing.T) {
	handler := middleware.Auth(newTestAuthSvc(t))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/health/ready", "/api/v1/auth/login", "/api/v1/auth/register"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("path %s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestAuthApiKeyHeader(t *testing.T) {
	handler := middleware.Auth(newTestAuthSvc(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if p == nil {
			t.Fatal("expected principal in context")
		}
		if p.UserID != "u1" {
			t.Errorf("user_id = %q, want u1", p.UserID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pireps", http.NoBody)
	req.Header.Set("X-API-Key", rawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuthBearerHeader(t *testing.T) {
	handler := middleware.Auth(newTestAuthSvc(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.PrincipalFromContext(r.Context()) == nil {
			t.Fatal("expected principal in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pireps", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuthInvalidKeyReturns401(t *testing.T) {
	handler := middleware.Auth(newTestAuthSvc(t))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pireps", http.NoBody)
	req.Header.Set("X-API-Key", "ak_not_a_real_key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
