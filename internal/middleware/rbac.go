package middleware

import (
	"net/http"

	"github.com/albatross-va/albatross/internal/domain/user"
)

// RequireRole returns middleware that restricts access to principals
// with one of the given roles.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				denied(w, http.StatusUnauthorized, "authorization required")
				return
			}

			if !allowed[p.Role] {
				denied(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
