package http

import (
	"net/http"

	"github.com/albatross-va/albatross/internal/middleware"
	"github.com/albatross-va/albatross/internal/service"
)

type createTenantRequest struct {
	Name string `json:"name"`
}

// CreateTenant handles POST /api/v1/tenants. The route restricts it to
// platform admins.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createTenantRequest](w, r)
	if !ok {
		return
	}

	id, err := h.Tenants.Create(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"tenant_id": id})
}

// ListTenants handles GET /api/v1/tenants. The route restricts it to
// platform admins.
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Tenants.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}

	writeJSON(w, http.StatusOK, tenants)
}

// GetTenant handles GET /api/v1/tenants/{id}
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := urlParam(r, "id")

	if err := service.Authorize(*p, service.TenantMember(id)); err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}

	t, err := h.Tenants.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// ListTenantPireps handles GET /api/v1/tenants/{id}/pireps
func (h *Handlers) ListTenantPireps(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := urlParam(r, "id")

	if err := service.Authorize(*p, service.TenantMember(id)); err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}

	pireps, err := h.Pireps.ListByTenant(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}

	writeJSON(w, http.StatusOK, pireps)
}
