package auth

// Session pairs a bearer token with the identity derived from it.
type Session struct {
	Token    string
	Identity Identity
}

// Role returns the identity role.
func (s *Session) Role() Role {
	if s == nil {
		return ""
	}
	return s.Identity.Role
}

// IsAdmin reports whether the session belongs to an admin.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Identity.Role.IsAdmin()
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
