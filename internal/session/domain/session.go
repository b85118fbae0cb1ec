package domain

import "time"

// Session is one live or historical authentication session. The raw refresh
// token is never stored; RefreshFingerprint holds its one-way digest and is
// replaced atomically on every rotation.
type Session struct {
	ID                 string
	UserID             string
	IdentityID         string
	RefreshFingerprint string
	JTI                string // client session id; jti of the current refresh token
	IPAddress          string
	UserAgent          string
	CreatedAt          time.Time
	ExpiresAt          time.Time
	RevokedAt          *time.Time
	RevokedReason      string
}

// Revocation reasons recorded on sessions.
const (
	ReasonLogout       = "logout"
	ReasonLogoutAll    = "logout_all"
	ReasonAdminRevoke  = "admin_revoke"
	ReasonUserDisabled = "user_disabled"
	ReasonRefreshReuse = "refresh_reuse"
)

// ClientContext is the opaque (ip, user agent) pair passed through from the
// transport layer.
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// Revoked reports whether the session has been explicitly revoked.
func (s *Session) Revoked() bool {
	return s != nil && s.RevokedAt != nil
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !now.Before(s.ExpiresAt)
}

// Valid reports whether the session may still be used at the given instant.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && !s.Revoked() && !s.Expired(now)
}
