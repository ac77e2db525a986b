package models

// Session identifies the caller of a service operation. IP and UserAgent are
// copied into audit records.
type Session struct {
	UserID      string
	Username    string
	Role        UserRole
	Permissions []string
	IP          string
	UserAgent   string
}

// SessionFromClaims builds a session from validated access token claims.
func SessionFromClaims(claims *JWTClaims) *Session {
	if claims == nil {
		return nil
	}
	return &Session{
		UserID:      claims.UserID,
		Username:    claims.Username,
		Role:        claims.Role,
		Permissions: append([]string(nil), claims.Permissions...),
	}
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// HasPermission is true for administrators and for users granted name.
func (s *Session) HasPermission(name string) bool {
	if s == nil {
		return false
	}
	if s.IsAdmin() {
		return true
	}
	for _, p := range s.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// CanDelete reports whether destructive operations are allowed.
func (s *Session) CanDelete() bool {
	return s.IsAdmin()
}

// Actor returns the user id for audit fields, or nil without a session.
func (s *Session) Actor() *string {
	if s == nil || s.UserID == "" {
		return nil
	}
	id := s.UserID
	return &id
}
