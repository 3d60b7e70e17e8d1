package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/albatross-va/albatross/internal/adapter/memstore"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/port/readmodel"
	"github.com/albatross-va/albatross/internal/service"
)

// fakeNotifier dispatches notifications synchronously to subscribed
// handlers, standing in for the core NATS transport.
type fakeNotifier struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]func(channel string, data []byte)
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{handlers: make(map[string]map[int]func(string, []byte))}
}

func (f *fakeNotifier) Notify(_ context.Context, channel string, data []byte) error {
	f.mu.Lock()
	fns := make([]func(string, []byte), 0, len(f.handlers[channel]))
	for _, fn := range f.handlers[channel] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(channel, data)
	}
	return nil
}

func (f *fakeNotifier) SubscribeNotify(_ context.Context, channel string, fn func(channel string, data []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	if f.handlers[channel] == nil {
		f.handlers[channel] = make(map[int]func(string, []byte))
	}
	f.handlers[channel][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[channel], id)
	}, nil
}

type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

const testApiKey = "ak_test_realtime_key"

func testConfig() config.Realtime {
	return config.Realtime{
		HeartbeatInterval: time.Hour,
		IdleTimeout:       time.Hour,
		MaxFrameBytes:     1024,
		RateMax:           100,
		RateWindow:        time.Second,
	}
}

func newTestServer(t *testing.T, cfg config.Realtime) (*httptest.Server, *fakeNotifier) {
	t.Helper()

	reads := memstore.NewReadModel()
	tenantID := "t1"
	if err := reads.UpsertUser(context.Background(), readmodel.User{
		ID:       "u1",
		Username: "amelia",
		Email:    "amelia@example.com",
		Role:     "Pilot",
		TenantID: &tenantID,
	}); err != nil {
		t.Fatal(err)
	}
	if err := reads.UpsertApiKey(context.Background(), readmodel.ApiKey{
		KeyID:   "k1",
		UserID:  "u1",
		Name:    "test",
		KeyHash: service.HashApiKey(testApiKey),
	}); err != nil {
		t.Fatal(err)
	}

	authCfg := &config.Auth{BcryptCost: 4, CredentialTTL: time.Minute}
	auth := service.NewAuthService(reads, &mapCache{items: make(map[string][]byte)}, authCfg)
	notifier := newFakeNotifier()

	srv := httptest.NewServer(NewHandler(auth, notifier, cfg, nil))
	t.Cleanup(srv.Close)
	return srv, notifier
}

func dial(t *testing.T, srv *httptest.Server, key string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	headers := http.Header{}
	if key != "" {
		headers.Set("Authorization", "Bearer "+key)
	}
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func sendJSON(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame %q: %v", data, err)
	}
	return frame
}

func TestRejectsMissingApiKey(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		t.Fatal("dial without credentials should fail")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestPingPong(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := dial(t, srv, testApiKey)

	sendJSON(t, c, map[string]any{"type": "ping", "id": "req-1"})
	frame := readFrame(t, c)
	if frame["type"] != "pong" || frame["id"] != "req-1" {
		t.Fatalf("frame = %v, want pong with id req-1", frame)
	}
}

func TestSubscribePartitionsChannels(t *testing.T) {
	srv, notifier := newTestServer(t, testConfig())
	c := dial(t, srv, testApiKey)

	sendJSON(t, c, map[string]any{
		"type":     "subscribe",
		"channels": []string{"user:u1:updates", "user:u2:updates"},
	})
	frame := readFrame(t, c)
	if frame["type"] != "ack" || frame["action"] != "subscribe" {
		t.Fatalf("frame = %v, want subscribe ack", frame)
	}
	if got := frame["accepted"].([]any); len(got) != 1 || got[0] != "user:u1:updates" {
		t.Fatalf("accepted = %v, want [user:u1:updates]", got)
	}
	if got := frame["rejected"].([]any); len(got) != 1 || got[0] != "user:u2:updates" {
		t.Fatalf("rejected = %v, want [user:u2:updates]", got)
	}

	payload := []byte(`{"event_type":"UserRegistered","data":{}}`)
	if err := notifier.Notify(context.Background(), "user:u1:updates", payload); err != nil {
		t.Fatal(err)
	}
	frame = readFrame(t, c)
	if frame["type"] != "event" || frame["channel"] != "user:u1:updates" {
		t.Fatalf("frame = %v, want event on user:u1:updates", frame)
	}
}

func TestBaselineTenantChannel(t *testing.T) {
	srv, notifier := newTestServer(t, testConfig())
	c := dial(t, srv, testApiKey)

	// The connection is attached to its tenant channel without an
	// explicit subscribe. A ping first proves the handshake finished.
	sendJSON(t, c, map[string]any{"type": "ping"})
	readFrame(t, c)

	if err := notifier.Notify(context.Background(), "tenant:t1:updates", []byte(`{"event_type":"PirepSubmitted"}`)); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, c)
	if frame["type"] != "event" || frame["channel"] != "tenant:t1:updates" {
		t.Fatalf("frame = %v, want event on tenant:t1:updates", frame)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	srv, notifier := newTestServer(t, testConfig())
	c := dial(t, srv, testApiKey)

	sendJSON(t, c, map[string]any{
		"type":     "unsubscribe",
		"channels": []string{"user:u1:updates", "user:u9:updates"},
	})
	frame := readFrame(t, c)
	if frame["type"] != "ack" || frame["action"] != "unsubscribe" {
		t.Fatalf("frame = %v, want unsubscribe ack", frame)
	}
	if got := frame["removed"].([]any); len(got) != 1 || got[0] != "user:u1:updates" {
		t.Fatalf("removed = %v, want [user:u1:updates]", got)
	}
	if got := frame["missing"].([]any); len(got) != 1 || got[0] != "user:u9:updates" {
		t.Fatalf("missing = %v, want [user:u9:updates]", got)
	}

	if err := notifier.Notify(context.Background(), "user:u1:updates", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	sendJSON(t, c, map[string]any{"type": "ping", "id": "after"})
	frame = readFrame(t, c)
	if frame["type"] != "pong" {
		t.Fatalf("frame = %v, want pong, unsubscribed channel must not deliver", frame)
	}
}

func TestOversizedFrameKeepsConnectionAlive(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFrameBytes = 64
	srv, _ := newTestServer(t, cfg)
	c := dial(t, srv, testApiKey)

	big := fmt.Sprintf(`{"type":"ping","id":%q}`, strings.Repeat("x", 100))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte(big)); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, c)
	if frame["type"] != "error" || frame["code"] != codeInvalidMessage {
		t.Fatalf("frame = %v, want invalid_message error", frame)
	}

	sendJSON(t, c, map[string]any{"type": "ping"})
	if frame := readFrame(t, c); frame["type"] != "pong" {
		t.Fatalf("frame = %v, connection should survive an oversized frame", frame)
	}
}

func TestBinaryFrameRejected(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := dial(t, srv, testApiKey)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, c)
	if frame["type"] != "error" || frame["code"] != codeInvalidMessage {
		t.Fatalf("frame = %v, want invalid_message error", frame)
	}
}

func TestRateLimitErrorFrame(t *testing.T) {
	cfg := testConfig()
	cfg.RateMax = 2
	srv, _ := newTestServer(t, cfg)
	c := dial(t, srv, testApiKey)

	sendJSON(t, c, map[string]any{"type": "ping"})
	readFrame(t, c)
	sendJSON(t, c, map[string]any{"type": "ping"})
	readFrame(t, c)

	sendJSON(t, c, map[string]any{"type": "ping"})
	frame := readFrame(t, c)
	if frame["type"] != "error" || frame["code"] != codeRateLimited {
		t.Fatalf("frame = %v, want rate_limited error", frame)
	}
}

func TestUnknownMessageType(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	c := dial(t, srv, testApiKey)

	sendJSON(t, c, map[string]any{"type": "teleport"})
	frame := readFrame(t, c)
	if frame["type"] != "error" || frame["code"] != codeInvalidMessage {
		t.Fatalf("frame = %v, want invalid_message error", frame)
	}
}
