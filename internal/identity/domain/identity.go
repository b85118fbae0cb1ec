package domain

import (
	"errors"
	"time"
)

// Identity is one authentication method bound to a user. For the native
// provider, ProviderUserID holds the chosen username; for external providers
// it is the subject id asserted by the provider. (Provider, ProviderUserID)
// is the global dedup key.
type Identity struct {
	ID             string
	UserID         string
	Provider       Provider
	ProviderUserID string
	Email          string // empty if the provider supplied none
	Username       string
	EmailVerified  bool
	CreatedAt      time.Time
	LastLoginAt    *time.Time
}

// Provider names an authentication method.
type Provider string

const (
	ProviderNative   Provider = "native"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// ValidProvider reports whether p is a known provider.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderNative, ProviderGoogle, ProviderFacebook:
		return true
	}
	return false
}

// Validate validates the identity for persistence.
func (i *Identity) Validate() error {
	if i.ID == "" || i.UserID == "" {
		return errors.New("identity id and user id are required")
	}
	if !ValidProvider(i.Provider) {
		return errors.New("unknown auth provider")
	}
	if i.ProviderUserID == "" {
		return errors.New("provider subject id is required")
	}
	return nil
}

// ExternalClaims is the already-verified claim set handed over after an OAuth
// provider handshake. The handshake itself happens outside this core.
type ExternalClaims struct {
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	PictureURL    string
	Locale        string
}
