// Package store describes the persistence operations the core depends on.
// Implementations live in store/pg (Postgres) and store/memory (tests).
package store

import (
	"context"
	"time"

	auditdomain "genesis-iam/backend/internal/audit/domain"
	credentialdomain "genesis-iam/backend/internal/credential/domain"
	identitydomain "genesis-iam/backend/internal/identity/domain"
	profiledomain "genesis-iam/backend/internal/profile/domain"
	sessiondomain "genesis-iam/backend/internal/session/domain"
	userdomain "genesis-iam/backend/internal/user/domain"
)

// Store bundles the per-entity repositories. InTx runs fn against a
// transaction-bound Store; fn returning an error rolls everything back.
// Lookup methods return (nil, nil) for missing rows; errors are reserved for
// store failures.
type Store interface {
	Users() UserStore
	Identities() IdentityStore
	Credentials() CredentialStore
	Profiles() ProfileStore
	Sessions() SessionStore
	Audit() AuditStore

	InTx(ctx context.Context, fn func(Store) error) error
}

// UserStore manages user rows.
type UserStore interface {
	Create(ctx context.Context, u *userdomain.User) error
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	List(ctx context.Context, limit, offset int32) ([]*userdomain.User, error)
	Update(ctx context.Context, u *userdomain.User) error
	// CountByRole returns the number of users holding the given role,
	// regardless of status. Used by the root-admin bootstrap.
	CountByRole(ctx context.Context, role userdomain.Role) (int64, error)
}

// IdentityStore manages authentication identities.
type IdentityStore interface {
	Create(ctx context.Context, i *identitydomain.Identity) error
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
	// GetByProviderSubject looks up by the (provider, provider_user_id)
	// dedup key.
	GetByProviderSubject(ctx context.Context, provider identitydomain.Provider, providerUserID string) (*identitydomain.Identity, error)
	// GetNativeByIdentifier looks up the native identity whose username or
	// email equals identifier.
	GetNativeByIdentifier(ctx context.Context, identifier string) (*identitydomain.Identity, error)
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.Provider) (*identitydomain.Identity, error)
	UpdateContact(ctx context.Context, id, username, email string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// CredentialStore manages native secret material.
type CredentialStore interface {
	Create(ctx context.Context, c *credentialdomain.Credential) error
	GetByUserID(ctx context.Context, userID string) (*credentialdomain.Credential, error)
	UpdateHash(ctx context.Context, userID, passwordHash string, at time.Time) error
}

// ProfileStore manages user profiles.
type ProfileStore interface {
	Create(ctx context.Context, p *profiledomain.Profile) error
	GetByUserID(ctx context.Context, userID string) (*profiledomain.Profile, error)
	Update(ctx context.Context, p *profiledomain.Profile) error
}

// SessionStore manages session rows.
type SessionStore interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	List(ctx context.Context, limit, offset int32) ([]*sessiondomain.Session, error)
	// RotateFingerprint atomically replaces the stored fingerprint, jti, and
	// client context, guarded by the current fingerprint. Returns false when
	// the guard does not match (the row was already rotated or revoked);
	// that is the replay signal.
	RotateFingerprint(ctx context.Context, sessionID, currentFingerprint, newFingerprint, newJTI string, client sessiondomain.ClientContext) (bool, error)
	// Revoke marks the session revoked. A no-op (false, nil) when the
	// session is already revoked or does not exist.
	Revoke(ctx context.Context, id, reason string, at time.Time) (bool, error)
	// RevokeAllForUser revokes every non-revoked session owned by the user
	// and returns how many were affected.
	RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int64, error)
	// DeleteEndedBefore removes sessions that expired or were revoked before
	// cutoff. Used by the reaper; the audit trail is untouched.
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, e *auditdomain.Entry) error
	List(ctx context.Context, limit, offset int32) ([]*auditdomain.Entry, error)
}
