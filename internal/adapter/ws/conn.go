package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/service"
)

// delivered is one notification received from the bus for this connection.
type delivered struct {
	channel string
	payload []byte
}

// connection owns one realtime socket. Three loops run concurrently: a
// heartbeat timer, a bus-forwarding loop, and the client-frame reader.
// All writes go through writeJSON, serialized by writeMu. Any loop
// ending cancels the shared context and tears the connection down.
type connection struct {
	sock      *websocket.Conn
	principal service.Principal
	notifier  eventbus.Notifier
	cfg       config.Realtime
	metrics   *otel.Metrics

	writeMu sync.Mutex

	subMu      sync.Mutex
	subs       map[string]struct{}
	subCancels map[string]func()

	activityMu   sync.Mutex
	lastActivity time.Time

	limiter *rateLimiter
	events  chan delivered
}

func newConnection(sock *websocket.Conn, p service.Principal, notifier eventbus.Notifier,
	cfg config.Realtime, metrics *otel.Metrics) *connection {
	return &connection{
		sock:         sock,
		principal:    p,
		notifier:     notifier,
		cfg:          cfg,
		metrics:      metrics,
		subs:         make(map[string]struct{}),
		subCancels:   make(map[string]func()),
		lastActivity: time.Now(),
		limiter:      newRateLimiter(cfg.RateMax, cfg.RateWindow),
		events:       make(chan delivered, 64),
	}
}

// run wires the baseline subscriptions, starts the background loops,
// and blocks in the reader loop until the connection ends.
func (c *connection) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.teardown()

	c.subscribeBaseline(ctx)

	go c.heartbeatLoop(ctx, cancel)
	go c.forwardLoop(ctx, cancel)
	c.readLoop(ctx, cancel)
}

// subscribeBaseline attaches the connection to its own-user channels
// and, for tenant-scoped users, the tenant channel.
func (c *connection) subscribeBaseline(ctx context.Context) {
	channels := []string{
		"user:" + c.principal.UserID + ":updates",
		"user:" + c.principal.UserID + ":apikeys",
	}
	if c.principal.TenantID != nil {
		channels = append(channels, "tenant:"+*c.principal.TenantID+":updates")
	}
	for _, ch := range channels {
		c.subscribe(ctx, ch)
	}
}

// subscribe adds ch to the subscription set and binds it to the bus.
// Returns false when the channel was already subscribed.
func (c *connection) subscribe(ctx context.Context, ch string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if _, ok := c.subs[ch]; ok {
		return false
	}
	cancel, err := c.notifier.SubscribeNotify(ctx, ch, func(channel string, data []byte) {
		select {
		case c.events <- delivered{channel: channel, payload: data}:
		default:
			slog.Warn("realtime buffer full, dropping notification",
				"user_id", c.principal.UserID, "channel", channel)
		}
	})
	if err != nil {
		slog.Error("channel subscribe failed", "channel", ch, "error", err)
		return false
	}
	c.subs[ch] = struct{}{}
	c.subCancels[ch] = cancel
	return true
}

// unsubscribe removes ch; returns false when it was not subscribed.
func (c *connection) unsubscribe(ch string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if _, ok := c.subs[ch]; !ok {
		return false
	}
	delete(c.subs, ch)
	if cancel, ok := c.subCancels[ch]; ok {
		cancel()
		delete(c.subCancels, ch)
	}
	return true
}

func (c *connection) subscribed(ch string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	_, ok := c.subs[ch]
	return ok
}

func (c *connection) teardown() {
	c.subMu.Lock()
	for _, cancel := range c.subCancels {
		cancel()
	}
	c.subCancels = make(map[string]func())
	c.subs = make(map[string]struct{})
	c.subMu.Unlock()
	_ = c.sock.CloseNow()
}

func (c *connection) touch() {
	c.activityMu.Lock()
	c.lastActivity = time.Now()
	c.activityMu.Unlock()
}

func (c *connection) idleFor() time.Duration {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	return time.Since(c.lastActivity)
}

// writeJSON marshals v and writes it as one text frame. The mutex is
// the single point of serialization for the three loops.
func (c *connection) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.Write(ctx, websocket.MessageText, data)
}

// heartbeatLoop emits heartbeat frames on a fixed interval and enforces
// the idle timeout. Inbound frames and forwarded events count as
// activity; heartbeats themselves do not, so a dead connection still
// times out.
func (c *connection) heartbeatLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.idleFor() > c.cfg.IdleTimeout {
				slog.Info("idle timeout, closing connection", "user_id", c.principal.UserID)
				c.writeMu.Lock()
				_ = c.sock.Close(websocket.StatusNormalClosure, "idle timeout")
				c.writeMu.Unlock()
				return
			}
			frame := heartbeatFrame{Type: "heartbeat", TS: time.Now().UTC().Format(time.RFC3339)}
			if err := c.writeJSON(ctx, frame); err != nil {
				return
			}
		}
	}
}

// forwardLoop pushes bus notifications to the client. Membership is
// re-checked at delivery time: an unsubscribe may race a message that
// was already queued.
func (c *connection) forwardLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.events:
			if !c.subscribed(msg.channel) {
				continue
			}
			frame := eventFrame{Type: "event", Channel: msg.channel, Payload: msg.payload}
			if err := c.writeJSON(ctx, frame); err != nil {
				return
			}
			c.touch()
			if c.metrics != nil {
				c.metrics.WSMessagesSent.Add(ctx, 1)
			}
		}
	}
}

// readLoop consumes client frames until the transport fails or the
// context is cancelled. Malformed input never closes the connection.
func (c *connection) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		typ, data, err := c.sock.Read(ctx)
		if err != nil {
			return
		}
		c.touch()

		if typ != websocket.MessageText {
			c.sendError(ctx, codeInvalidMessage, "binary frames not supported")
			continue
		}
		if int64(len(data)) > c.cfg.MaxFrameBytes {
			c.sendError(ctx, codeInvalidMessage, "message too large")
			continue
		}
		if !c.limiter.record() {
			c.sendError(ctx, codeRateLimited, "too many control messages")
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ctx, codeInvalidMessage, "unrecognized message")
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.handleSubscribe(ctx, msg.Channels)
		case "unsubscribe":
			c.handleUnsubscribe(ctx, msg.Channels)
		case "ping":
			if err := c.writeJSON(ctx, pongFrame{Type: "pong", ID: msg.ID}); err != nil {
				return
			}
		default:
			c.sendError(ctx, codeInvalidMessage, "unrecognized message")
		}
	}
}

func (c *connection) handleSubscribe(ctx context.Context, channels []string) {
	accepted := []string{}
	rejected := []string{}
	for _, ch := range channels {
		if ValidateChannel(ch, c.principal) {
			c.subscribe(ctx, ch)
			accepted = append(accepted, ch)
		} else {
			rejected = append(rejected, ch)
		}
	}
	_ = c.writeJSON(ctx, subscribeAckFrame{
		Type: "ack", Action: "subscribe",
		Channels: channels, Accepted: accepted, Rejected: rejected,
	})
}

func (c *connection) handleUnsubscribe(ctx context.Context, channels []string) {
	removed := []string{}
	missing := []string{}
	for _, ch := range channels {
		if c.unsubscribe(ch) {
			removed = append(removed, ch)
		} else {
			missing = append(missing, ch)
		}
	}
	_ = c.writeJSON(ctx, unsubscribeAckFrame{
		Type: "ack", Action: "unsubscribe",
		Channels: channels, Removed: removed, Missing: missing,
	})
}

func (c *connection) sendError(ctx context.Context, code, message string) {
	if err := c.writeJSON(ctx, errorFrame{Type: "error", Code: code, Message: message}); err != nil {
		slog.Debug("error frame write failed", "error", err)
	}
}
