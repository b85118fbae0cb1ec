package domain

import "time"

// Credential is the native-only secret material for a user, one row per user.
// Only the salted digest is ever stored.
type Credential struct {
	UserID            string
	PasswordHash      string
	PasswordUpdatedAt time.Time
	MustReset         bool
}
