package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// ReadModel implements readmodel.Store with in-process maps.
type ReadModel struct {
	mu      sync.RWMutex
	tenants map[string]readmodel.Tenant
	users   map[string]readmodel.User
	apiKeys map[string]readmodel.ApiKey
	pireps  map[string]readmodel.Pirep
}

// NewReadModel creates an empty in-memory read model store.
func NewReadModel() *ReadModel {
	return &ReadModel{
		tenants: make(map[string]readmodel.Tenant),
		users:   make(map[string]readmodel.User),
		apiKeys: make(map[string]readmodel.ApiKey),
		pireps:  make(map[string]readmodel.Pirep),
	}
}

func (s *ReadModel) UpsertTenant(_ context.Context, t readmodel.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	return nil
}

func (s *ReadModel) GetTenant(_ context.Context, id string) (*readmodel.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}
	return &t, nil
}

func (s *ReadModel) ListTenants(_ context.Context) ([]readmodel.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]readmodel.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ReadModel) UpsertUser(_ context.Context, u readmodel.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.users[u.ID]; ok {
		// Replayed upserts must not clobber later projections.
		if u.PasswordHash == "" {
			u.PasswordHash = prev.PasswordHash
		}
		if u.LastLoginAt == nil {
			u.LastLoginAt = prev.LastLoginAt
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *ReadModel) SetPasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	u.PasswordHash = hash
	s.users[userID] = u
	return nil
}

func (s *ReadModel) SetLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	u.LastLoginAt = &at
	s.users[userID] = u
	return nil
}

func (s *ReadModel) GetUser(_ context.Context, id string) (*readmodel.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *ReadModel) GetUserByUsername(_ context.Context, username string) (*readmodel.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
}

func (s *ReadModel) UpsertApiKey(_ context.Context, k readmodel.ApiKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys[k.KeyID] = k
	return nil
}

func (s *ReadModel) DeleteApiKey(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apiKeys, keyID)
	return nil
}

func (s *ReadModel) ListApiKeys(_ context.Context, userID string) ([]readmodel.ApiKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []readmodel.ApiKey
	for _, k := range s.apiKeys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ReadModel) GetUserByApiKeyHash(_ context.Context, keyHash string) (*readmodel.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.apiKeys {
		if k.KeyHash == keyHash {
			u, ok := s.users[k.UserID]
			if !ok {
				break
			}
			return &u, nil
		}
	}
	return nil, fmt.Errorf("api key: %w", domain.ErrNotFound)
}

func (s *ReadModel) UpsertPirep(_ context.Context, p readmodel.Pirep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pireps[p.ID]; !ok {
		s.pireps[p.ID] = p
	}
	return nil
}

func (s *ReadModel) GetPirep(_ context.Context, id string) (*readmodel.Pirep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pireps[id]
	if !ok {
		return nil, fmt.Errorf("pirep %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *ReadModel) ListPirepsByTenant(_ context.Context, tenantID string) ([]readmodel.Pirep, error) {
	return s.listPireps(func(p readmodel.Pirep) bool { return p.TenantID == tenantID })
}

func (s *ReadModel) ListPirepsByUser(_ context.Context, userID string) ([]readmodel.Pirep, error) {
	return s.listPireps(func(p readmodel.Pirep) bool { return p.UserID == userID })
}

func (s *ReadModel) listPireps(match func(readmodel.Pirep) bool) ([]readmodel.Pirep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []readmodel.Pirep
	for _, p := range s.pireps {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}
