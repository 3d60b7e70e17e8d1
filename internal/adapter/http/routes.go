package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/albatross-va/albatross/internal/domain/user"
	"github.com/albatross-va/albatross/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router. The
// realtime handler is mounted separately because it authenticates
// during the upgrade handshake instead of through the auth middleware.
func MountRoutes(r chi.Router, h *Handlers, realtime http.Handler) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.HealthReady)

	if realtime != nil {
		r.Get("/ws", realtime.ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Request timeout applies to the REST surface only; the
		// realtime socket outlives any sane request deadline.
		r.Use(chimw.Timeout(30 * time.Second))

		// Auth
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Get("/auth/me", h.Me)
		r.Post("/auth/change-password", h.ChangePassword)
		r.Post("/auth/api-keys", h.CreateApiKey)
		r.Get("/auth/api-keys", h.ListApiKeys)
		r.Delete("/auth/api-keys/{id}", h.RevokeApiKey)

		// Tenants
		platformAdmin := middleware.RequireRole(user.RolePlatformAdmin)
		r.With(platformAdmin).Post("/tenants", h.CreateTenant)
		r.With(platformAdmin).Get("/tenants", h.ListTenants)
		r.Get("/tenants/{id}", h.GetTenant)
		r.Get("/tenants/{id}/pireps", h.ListTenantPireps)

		// Users
		r.Post("/users", h.CreateUser)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/users/{id}/pireps", h.ListUserPireps)

		// Flight reports
		r.Post("/pireps", h.SubmitPirep)
		r.Get("/pireps/{id}", h.GetPirep)
	})
}
