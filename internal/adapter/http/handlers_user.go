package http

import (
	"net/http"

	"github.com/albatross-va/albatross/internal/domain/user"
	"github.com/albatross-va/albatross/internal/middleware"
	"github.com/albatross-va/albatross/internal/service"
)

// CreateUser handles POST /api/v1/users. Platform admins may create any
// user; tenant admins only users within their own tenant.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	req, ok := readJSON[service.RegisterRequest](w, r)
	if !ok {
		return
	}

	if p.Role != user.RolePlatformAdmin {
		if p.Role != user.RoleTenantAdmin || p.TenantID == nil ||
			req.TenantID == nil || *req.TenantID != *p.TenantID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if user.Role(req.Role) == user.RolePlatformAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	id, err := h.Users.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"user_id": id})
}

// GetUser handles GET /api/v1/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := urlParam(r, "id")

	u, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	if err := service.Authorize(*p, service.SelfOrTenantAdmin(u.ID, u.TenantID)); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// ListUserPireps handles GET /api/v1/users/{id}/pireps
func (h *Handlers) ListUserPireps(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := urlParam(r, "id")

	u, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	if err := service.Authorize(*p, service.SelfOrTenantAdmin(u.ID, u.TenantID)); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	pireps, err := h.Pireps.ListByUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, pireps)
}
