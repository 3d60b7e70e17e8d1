package ws

import (
	"strings"

	"github.com/albatross-va/albatross/internal/service"
)

// ValidateChannel decides whether the principal may subscribe to a
// realtime channel of the form <entity>:<id>:<suffix>. Users may watch
// only their own channels; tenant channels require membership.
func ValidateChannel(channel string, p service.Principal) bool {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return false
	}
	entity, id, suffix := parts[0], parts[1], parts[2]
	if id == "" {
		return false
	}

	switch {
	case entity == "user" && (suffix == "updates" || suffix == "apikeys"):
		return id == p.UserID
	case entity == "tenant" && suffix == "updates":
		return p.TenantID != nil && id == *p.TenantID
	default:
		return false
	}
}
