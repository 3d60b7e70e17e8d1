package http

import (
	"net/http"

	"github.com/albatross-va/albatross/internal/middleware"
	"github.com/albatross-va/albatross/internal/service"
)

// SubmitPirep handles POST /api/v1/pireps. The report is always filed
// for the authenticated pilot within their own tenant.
func (h *Handlers) SubmitPirep(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if p.TenantID == nil {
		writeError(w, http.StatusForbidden, "flight reports require a tenant membership")
		return
	}

	req, ok := readJSON[service.SubmitPirepRequest](w, r)
	if !ok {
		return
	}
	req.TenantID = *p.TenantID
	req.UserID = p.UserID

	id, err := h.Pireps.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "flight report not found")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"pirep_id": id})
}

// GetPirep handles GET /api/v1/pireps/{id}
func (h *Handlers) GetPirep(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := urlParam(r, "id")

	pr, err := h.Pireps.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "flight report not found")
		return
	}

	if err := service.Authorize(*p, service.TenantMember(pr.TenantID)); err != nil {
		writeDomainError(w, err, "flight report not found")
		return
	}

	writeJSON(w, http.StatusOK, pr)
}
