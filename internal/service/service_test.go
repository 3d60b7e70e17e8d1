package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/albatross-va/albatross/internal/adapter/memstore"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/event"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// capturingBus records published envelopes per subject.
type capturingBus struct {
	mu        sync.Mutex
	envelopes []eventbus.Envelope
	subjects  []string
}

func (b *capturingBus) Publish(_ context.Context, subject string, env eventbus.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes = append(b.envelopes, env)
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *capturingBus) published() []eventbus.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]eventbus.Envelope, len(b.envelopes))
	copy(out, b.envelopes)
	return out
}

// brokenBus records the envelope it saw and then refuses to publish.
type brokenBus struct {
	mu          sync.Mutex
	aggregateID string
}

func (b *brokenBus) Publish(_ context.Context, _ string, env eventbus.Envelope) error {
	b.mu.Lock()
	b.aggregateID = env.AggregateID
	b.mu.Unlock()
	return errors.New("broker down")
}

// memCache is a TTL-less map cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func testAuthConfig() *config.Auth {
	cfg := config.Defaults().Auth
	cfg.BcryptCost = 4 // keep tests fast
	return &cfg
}

func TestTenantCreate(t *testing.T) {
	store := memstore.NewEventStore()
	bus := &capturingBus{}
	reads := memstore.NewReadModel()
	svc := NewTenantService(store, bus, reads, nil)

	id, err := svc.Create(context.Background(), "Albatross Virtual")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("empty tenant id")
	}

	evs := bus.published()
	if len(evs) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(evs))
	}
	if evs[0].Type != event.TypeTenantCreated || evs[0].Sequence != 1 {
		t.Fatalf("unexpected envelope %+v", evs[0])
	}
	if bus.subjects[0] != eventbus.SubjectTenantEvents {
		t.Fatalf("subject = %s", bus.subjects[0])
	}

	stored, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(stored))
	}
}

func TestTenantCreateValidation(t *testing.T) {
	svc := NewTenantService(memstore.NewEventStore(), &capturingBus{}, memstore.NewReadModel(), nil)
	if _, err := svc.Create(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUserApiKeyLifecycle(t *testing.T) {
	store := memstore.NewEventStore()
	bus := &capturingBus{}
	reads := memstore.NewReadModel()
	svc := NewUserService(store, bus, reads, testAuthConfig(), nil)
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterRequest{
		Username: "alice", Email: "alice@example.com",
		Password: "hunter22", Role: "PlatformAdmin",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	key, err := svc.GenerateApiKey(ctx, id, "ci")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(key.RawKey, "ak_") {
		t.Fatalf("raw key %q lacks prefix", key.RawKey)
	}

	if err := svc.RevokeApiKey(ctx, id, key.KeyID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Replaying the revoke must fail: the stream already recorded it.
	if err := svc.RevokeApiKey(ctx, id, key.KeyID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second revoke, got %v", err)
	}

	stored, _ := store.Load(ctx, id)
	if len(stored) != 3 {
		t.Fatalf("expected 3 events, got %d", len(stored))
	}
	wantTypes := []event.Type{event.TypeUserRegistered, event.TypeApiKeyGenerated, event.TypeApiKeyRevoked}
	for i, se := range stored {
		if se.Type != wantTypes[i] {
			t.Fatalf("event[%d] type = %s, want %s", i, se.Type, wantTypes[i])
		}
	}
}

func TestPublishFailurePropagatesAfterPersist(t *testing.T) {
	store := memstore.NewEventStore()
	bus := &brokenBus{}
	svc := NewUserService(store, bus, memstore.NewReadModel(), testAuthConfig(), nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Username: "dana", Email: "dana@example.com",
		Password: "hunter22", Role: "PlatformAdmin",
	})
	if err == nil {
		t.Fatal("expected register to surface the publish failure")
	}

	// The events were committed before the broker refused them.
	stored, loadErr := store.Load(ctx, bus.aggregateID)
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(stored))
	}
}

func TestUserRegisterNeverPublishesPlaintext(t *testing.T) {
	bus := &capturingBus{}
	svc := NewUserService(memstore.NewEventStore(), bus, memstore.NewReadModel(), testAuthConfig(), nil)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "secret123", Role: "PlatformAdmin",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// The bcrypt hash travels in the event; the plaintext must not.
	for _, env := range bus.published() {
		if strings.Contains(string(env.Payload), "secret123") {
			t.Fatalf("payload leaks plaintext password: %s", env.Payload)
		}
	}
}

func TestLogin(t *testing.T) {
	store := memstore.NewEventStore()
	bus := &capturingBus{}
	reads := memstore.NewReadModel()
	svc := NewUserService(store, bus, reads, testAuthConfig(), nil)
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: "pw123456", Role: "PlatformAdmin",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// The projection worker normally maintains this row.
	seedUserRow(t, reads, bus.published()[0], ctx)

	u, err := svc.Login(ctx, "carol", "pw123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != id {
		t.Fatalf("user id = %s, want %s", u.ID, id)
	}

	if _, err := svc.Login(ctx, "carol", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "pw123456"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
}

// seedUserRow projects a UserRegistered envelope into the read model by hand.
func seedUserRow(t *testing.T, reads readmodel.Store, env eventbus.Envelope, ctx context.Context) {
	t.Helper()
	ev, err := event.Decode(env.Type, env.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	reg, ok := ev.(event.UserRegistered)
	if !ok {
		t.Fatalf("expected UserRegistered, got %T", ev)
	}
	if err := reads.UpsertUser(ctx, readmodel.User{
		ID: reg.UserID, Username: reg.Username, Email: reg.Email,
		Role: reg.Role, TenantID: reg.TenantID, PasswordHash: reg.PasswordHash,
		CreatedAt: reg.Timestamp,
	}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
}

func TestPirepSubmit(t *testing.T) {
	bus := &capturingBus{}
	svc := NewPirepService(memstore.NewEventStore(), bus, memstore.NewReadModel(), nil)

	id, err := svc.Submit(context.Background(), SubmitPirepRequest{
		TenantID: "tenant-1", UserID: "user-1", AircraftID: "B738",
		DepartureICAO: "KSFO", ArrivalICAO: "KLAX", FlightNumber: "AVA101",
		FlightTimeHours: 1.2,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("empty pirep id")
	}
	if bus.subjects[0] != eventbus.SubjectPirepEvents {
		t.Fatalf("subject = %s", bus.subjects[0])
	}
}

func TestPirepSubmitValidation(t *testing.T) {
	svc := NewPirepService(memstore.NewEventStore(), &capturingBus{}, memstore.NewReadModel(), nil)
	_, err := svc.Submit(context.Background(), SubmitPirepRequest{
		TenantID: "tenant-1", UserID: "user-1", AircraftID: "B738",
		DepartureICAO: "KSFO", ArrivalICAO: "KLAX", FlightTimeHours: 0,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthenticateApiKey(t *testing.T) {
	reads := memstore.NewReadModel()
	c := newMemCache()
	auth := NewAuthService(reads, c, testAuthConfig())
	ctx := context.Background()

	tenantID := "tenant-1"
	if err := reads.UpsertUser(ctx, readmodel.User{
		ID: "user-1", Username: "erin", Email: "erin@example.com",
		Role: "Pilot", TenantID: &tenantID, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	raw := "ak_deadbeef"
	if err := reads.UpsertApiKey(ctx, readmodel.ApiKey{
		KeyID: "key-1", UserID: "user-1", Name: "ci",
		KeyHash: HashApiKey(raw), CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("upsert key: %v", err)
	}

	p, err := auth.AuthenticateApiKey(ctx, raw)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.UserID != "user-1" || p.Role != "Pilot" {
		t.Fatalf("unexpected principal %+v", p)
	}

	// Second lookup is served from the cache: removing the key from the
	// read model must not break it until the cache entry is invalidated.
	if err := reads.DeleteApiKey(ctx, "key-1"); err != nil {
		t.Fatalf("delete key: %v", err)
	}
	if _, err := auth.AuthenticateApiKey(ctx, raw); err != nil {
		t.Fatalf("cached authenticate: %v", err)
	}

	if err := auth.InvalidateApiKey(ctx, HashApiKey(raw)); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := auth.AuthenticateApiKey(ctx, raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after invalidation, got %v", err)
	}
}

func TestCreateSession(t *testing.T) {
	reads := memstore.NewReadModel()
	auth := NewAuthService(reads, newMemCache(), testAuthConfig())
	ctx := context.Background()

	u := &readmodel.User{
		ID: "user-1", Username: "erin", Email: "erin@example.com",
		Role: "Pilot", CreatedAt: time.Now().UTC(),
	}
	token, err := auth.CreateSession(ctx, u)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !strings.HasPrefix(token, "st_") {
		t.Fatalf("token %q lacks prefix", token)
	}

	// The token resolves without any api key row backing it.
	p, err := auth.AuthenticateApiKey(ctx, token)
	if err != nil {
		t.Fatalf("authenticate session token: %v", err)
	}
	if p.UserID != "user-1" || p.Role != "Pilot" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestAuthorize(t *testing.T) {
	tenantA := "tenant-a"
	admin := Principal{UserID: "u1", Role: "PlatformAdmin"}
	tadmin := Principal{UserID: "u2", Role: "TenantAdmin", TenantID: &tenantA}
	pilot := Principal{UserID: "u3", Role: "Pilot", TenantID: &tenantA}

	if err := Authorize(admin, PlatformAdminOnly); err != nil {
		t.Fatalf("platform admin denied: %v", err)
	}
	if err := Authorize(pilot, PlatformAdminOnly); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected denial, got %v", err)
	}

	if err := Authorize(pilot, SelfOrTenantAdmin("u3", &tenantA)); err != nil {
		t.Fatalf("self denied: %v", err)
	}
	if err := Authorize(tadmin, SelfOrTenantAdmin("u3", &tenantA)); err != nil {
		t.Fatalf("tenant admin denied: %v", err)
	}
	tenantB := "tenant-b"
	if err := Authorize(tadmin, SelfOrTenantAdmin("u9", &tenantB)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected cross-tenant denial, got %v", err)
	}

	if err := Authorize(pilot, TenantMember(tenantA)); err != nil {
		t.Fatalf("member denied: %v", err)
	}
	if err := Authorize(pilot, TenantMember(tenantB)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected non-member denial, got %v", err)
	}
}
