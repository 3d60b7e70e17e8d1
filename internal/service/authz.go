package service

import (
	"fmt"

	"github.com/albatross-va/albatross/internal/domain"
	"github.com/albatross-va/albatross/internal/domain/user"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Role     user.Role `json:"role"`
	TenantID *string   `json:"tenant_id,omitempty"`
}

// Predicate decides whether a principal may perform an action.
type Predicate func(p Principal) bool

// PlatformAdminOnly allows platform administrators.
func PlatformAdminOnly(p Principal) bool {
	return p.Role == user.RolePlatformAdmin
}

// SelfOrTenantAdmin allows the user themselves, a tenant admin of the
// target's tenant, or a platform admin.
func SelfOrTenantAdmin(targetUserID string, targetTenantID *string) Predicate {
	return func(p Principal) bool {
		if p.Role == user.RolePlatformAdmin {
			return true
		}
		if p.UserID == targetUserID {
			return true
		}
		if p.Role == user.RoleTenantAdmin && p.TenantID != nil && targetTenantID != nil &&
			*p.TenantID == *targetTenantID {
			return true
		}
		return false
	}
}

// TenantMember allows anyone belonging to the tenant, plus platform admins.
func TenantMember(tenantID string) Predicate {
	return func(p Principal) bool {
		if p.Role == user.RolePlatformAdmin {
			return true
		}
		return p.TenantID != nil && *p.TenantID == tenantID
	}
}

// Authorize evaluates pred and returns ErrUnauthorized when it denies.
func Authorize(p Principal, pred Predicate) error {
	if !pred(p) {
		return fmt.Errorf("%s: %w", p.UserID, domain.ErrUnauthorized)
	}
	return nil
}
