package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/albatross-va/albatross/internal/service"
)

type principalCtxKey struct{}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":               true,
	"/health/ready":         true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/register": true,
}

// Auth returns middleware that resolves API key credentials to a
// principal. Keys are accepted from the X-API-Key header or an
// Authorization: Bearer header. The realtime endpoint authenticates
// itself during the upgrade handshake and is skipped here.
func Auth(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				auth := r.Header.Get("Authorization")
				if auth == "" {
					denied(w, http.StatusUnauthorized, "authorization required")
					return
				}
				bearer, ok := strings.CutPrefix(auth, "Bearer ")
				if !ok {
					denied(w, http.StatusUnauthorized, "invalid authorization header")
					return
				}
				key = strings.TrimSpace(bearer)
			}

			p, err := authSvc.AuthenticateApiKey(r.Context(), key)
			if err != nil {
				denied(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), principalCtxKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// denied writes a JSON error body with the given status.
func denied(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, msg)
}

// PrincipalFromContext returns the authenticated principal from the
// request context, or nil when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *service.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*service.Principal)
	return p
}

// WithPrincipal stores a principal in ctx. Exported for handler tests
// that bypass the auth middleware.
func WithPrincipal(ctx context.Context, p *service.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}
