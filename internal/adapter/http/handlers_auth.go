package http

import (
	"log/slog"
	"net/http"

	"github.com/albatross-va/albatross/internal/domain/user"
	"github.com/albatross-va/albatross/internal/middleware"
	"github.com/albatross-va/albatross/internal/service"
)

// Register handles POST /api/v1/auth/register. Self-registration always
// creates a pilot; privileged roles are provisioned through the users
// endpoint by an administrator.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.RegisterRequest](w, r)
	if !ok {
		return
	}
	req.Role = string(user.RolePilot)

	id, err := h.Users.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"user_id": id})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[loginRequest](w, r)
	if !ok {
		return
	}

	u, err := h.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		slog.Debug("login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Auth.CreateSession(r.Context(), u)
	if err != nil {
		writeDomainError(w, err, "session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	req, ok := readJSON[changePasswordRequest](w, r)
	if !ok {
		return
	}

	if err := h.Users.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

type createApiKeyRequest struct {
	Name string `json:"name"`
}

// CreateApiKey handles POST /api/v1/auth/api-keys
func (h *Handlers) CreateApiKey(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	req, ok := readJSON[createApiKeyRequest](w, r)
	if !ok {
		return
	}

	key, err := h.Users.GenerateApiKey(r.Context(), p.UserID, req.Name)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusCreated, key)
}

// ListApiKeys handles GET /api/v1/auth/api-keys
func (h *Handlers) ListApiKeys(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	keys, err := h.Users.ListApiKeys(r.Context(), p.UserID)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, keys)
}

// RevokeApiKey handles DELETE /api/v1/auth/api-keys/{id}
func (h *Handlers) RevokeApiKey(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	keyID := urlParam(r, "id")

	// Drop the cached credential before the revocation propagates so a
	// revoked key stops authenticating immediately.
	keys, err := h.Users.ListApiKeys(r.Context(), p.UserID)
	if err == nil {
		for _, k := range keys {
			if k.KeyID == keyID {
				if err := h.Auth.InvalidateApiKey(r.Context(), k.KeyHash); err != nil {
					slog.Warn("credential cache invalidation failed", "key_id", keyID, "error", err)
				}
				break
			}
		}
	}

	if err := h.Users.RevokeApiKey(r.Context(), p.UserID, keyID); err != nil {
		writeDomainError(w, err, "api key not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
