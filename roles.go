package auth

import "strings"

// Role is the access tier carried by an Identity.
type Role string

const (
	RoleClient    Role = "client"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// DefaultRole is assigned when claims or user payloads carry no role.
const DefaultRole = RoleClient

// ParseRole normalizes a raw role value. Empty values map to DefaultRole,
// unknown values are passed through untouched.
func ParseRole(raw string) Role {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRole
	}
	return Role(raw)
}

// IsKnown reports whether the role belongs to the set this package understands.
func (r Role) IsKnown() bool {
	switch r {
	case RoleClient, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin is the only role check used for route gating.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
