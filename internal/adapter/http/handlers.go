package http

import (
	"net/http"

	"github.com/albatross-va/albatross/internal/service"
)

// Handlers bundles the application services behind the REST surface.
type Handlers struct {
	Tenants *service.TenantService
	Users   *service.UserService
	Pireps  *service.PirepService
	Auth    *service.AuthService

	// Ready reports whether backing stores are reachable. Used by the
	// readiness probe; nil means always ready.
	Ready func(r *http.Request) error
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady handles GET /health/ready
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
