// Package ws implements the realtime WebSocket fan-out: authenticated
// connections subscribe to notification channels and receive the
// projection worker's envelopes as event frames.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/service"
)

// Handler upgrades HTTP requests to realtime connections.
type Handler struct {
	auth     *service.AuthService
	notifier eventbus.Notifier
	cfg      config.Realtime
	metrics  *otel.Metrics
}

// NewHandler creates a WebSocket handler.
func NewHandler(auth *service.AuthService, notifier eventbus.Notifier, cfg config.Realtime, metrics *otel.Metrics) *Handler {
	return &Handler{auth: auth, notifier: notifier, cfg: cfg, metrics: metrics}
}

// ServeHTTP authenticates the caller, upgrades the connection, and runs
// it until any of its loops terminates.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFrom(r)
	principal, err := h.auth.AuthenticateApiKey(r.Context(), key)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// Oversized frames up to twice the cap are rejected with an error
	// frame; beyond that the transport closes the connection.
	sock.SetReadLimit(2 * h.cfg.MaxFrameBytes)

	if h.metrics != nil {
		h.metrics.WSConnections.Add(r.Context(), 1)
		defer h.metrics.WSConnections.Add(context.Background(), -1)
	}

	c := newConnection(sock, *principal, h.notifier, h.cfg, h.metrics)
	slog.Info("websocket connected", "user_id", principal.UserID, "remote", r.RemoteAddr)
	c.run(r.Context())
	slog.Info("websocket disconnected", "user_id", principal.UserID)
}

// apiKeyFrom extracts the API key from the Authorization header, with a
// query fallback for browser clients that cannot set headers.
func apiKeyFrom(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
	}
	return r.URL.Query().Get("api_key")
}
