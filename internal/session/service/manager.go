// Package service implements the session lifecycle: creation, access
// authorization, refresh rotation with replay detection, and revocation.
package service

import (
	"context"
	"errors"
	"time"

	"genesis-iam/backend/internal/audit"
	auditdomain "genesis-iam/backend/internal/audit/domain"
	identitydomain "genesis-iam/backend/internal/identity/domain"
	"genesis-iam/backend/internal/ids"
	"genesis-iam/backend/internal/security"
	"genesis-iam/backend/internal/session/domain"
	"genesis-iam/backend/internal/store"
	userdomain "genesis-iam/backend/internal/user/domain"
)

// Sentinel errors; the transport layer maps them to status codes.
var (
	// ErrUnauthorized means the token decoded fine but the session is
	// missing, revoked, or expired, or the user is no longer active.
	ErrUnauthorized = errors.New("session no longer valid")
	// ErrReplayDetected means an already-rotated refresh token was presented.
	// The session is revoked before this is returned.
	ErrReplayDetected = errors.New("refresh token reuse detected")
	// ErrNotFound is returned by admin-targeted operations when the session
	// does not exist.
	ErrNotFound = errors.New("session not found")
)

// TokenPair is the result of session creation and rotation. ExpiresIn is the
// access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// Manager owns session state transitions. ACTIVE sessions rotate in place;
// REVOKED and EXPIRED are terminal.
type Manager struct {
	store      store.Store
	codec      *security.TokenCodec
	recorder   *audit.Recorder
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the manager's time source. Useful for tests.
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager returns a Manager issuing tokens with the given TTLs.
func NewManager(st store.Store, codec *security.TokenCodec, recorder *audit.Recorder, accessTTL, refreshTTL time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store:      st,
		codec:      codec,
		recorder:   recorder,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession allocates a session for an authenticated (user, identity)
// pair and mints its first token pair. The pair is returned only after the
// session row, last-login update, and audit entry have committed together.
func (m *Manager) CreateSession(ctx context.Context, user *userdomain.User, identity *identitydomain.Identity, client domain.ClientContext) (*TokenPair, error) {
	now := m.now().UTC()
	sessionID := ids.New()

	refreshToken, jti, _, err := m.codec.Issue(user.ID, sessionID, string(user.Role), string(identity.Provider), security.TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	accessToken, _, _, err := m.codec.Issue(user.ID, sessionID, string(user.Role), string(identity.Provider), security.TokenTypeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}

	sess := &domain.Session{
		ID:                 sessionID,
		UserID:             user.ID,
		IdentityID:         identity.ID,
		RefreshFingerprint: security.Fingerprint(refreshToken),
		JTI:                jti,
		IPAddress:          client.IPAddress,
		UserAgent:          client.UserAgent,
		CreatedAt:          now,
		ExpiresAt:          now.Add(m.refreshTTL),
	}

	err = m.recorder.InTx(ctx, m.store, func(st store.Store, rec *audit.TxRecorder) error {
		if err := st.Sessions().Create(ctx, sess); err != nil {
			return err
		}
		if err := st.Identities().TouchLastLogin(ctx, identity.ID, now); err != nil {
			return err
		}
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: user.ID,
			Action:      loginAction(identity.Provider),
			TargetType:  "session",
			TargetID:    sessionID,
		})
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

// AuthorizeAccess is the gate every protected operation passes through. It
// decodes the access token, confirms the referenced session is still valid,
// and confirms the user is still active.
func (m *Manager) AuthorizeAccess(ctx context.Context, accessToken string) (*userdomain.User, error) {
	claims, err := m.codec.Decode(accessToken, security.TokenTypeAccess)
	if err != nil {
		return nil, security.ErrInvalidToken
	}
	now := m.now().UTC()

	sess, err := m.store.Sessions().GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Valid(now) {
		return nil, ErrUnauthorized
	}
	user, err := m.store.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive() {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// RotateRefresh validates the presented refresh token, atomically swaps the
// stored fingerprint, and mints a new pair bound to the same session. A
// fingerprint mismatch means the token was already rotated: the session is
// revoked to contain a possible theft and ErrReplayDetected is returned.
func (m *Manager) RotateRefresh(ctx context.Context, refreshToken string, client domain.ClientContext) (*TokenPair, error) {
	claims, err := m.codec.Decode(refreshToken, security.TokenTypeRefresh)
	if err != nil {
		return nil, security.ErrInvalidToken
	}
	now := m.now().UTC()

	sess, err := m.store.Sessions().GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Valid(now) {
		return nil, ErrUnauthorized
	}

	newRefresh, newJTI, _, err := m.codec.Issue(sess.UserID, sess.ID, claims.Role, claims.AuthMethod, security.TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	newAccess, _, _, err := m.codec.Issue(sess.UserID, sess.ID, claims.Role, claims.AuthMethod, security.TokenTypeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}

	var rotated bool
	err = m.recorder.InTx(ctx, m.store, func(st store.Store, rec *audit.TxRecorder) error {
		rotated, err = st.Sessions().RotateFingerprint(ctx, sess.ID,
			security.Fingerprint(refreshToken), security.Fingerprint(newRefresh), newJTI, client)
		if err != nil {
			return err
		}
		if !rotated {
			// Roll back nothing; the replay response commits separately.
			return nil
		}
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: sess.UserID,
			Action:      auditdomain.ActionRefreshRotated,
			TargetType:  "session",
			TargetID:    sess.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, m.handleReplay(ctx, refreshToken, sess.ID, sess.UserID, now)
	}

	return &TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

// handleReplay classifies a failed fingerprint swap. A session revoked in the
// meantime is plain ErrUnauthorized; a live session whose stored fingerprint
// no longer matches the presented token is token reuse, which revokes the
// session.
func (m *Manager) handleReplay(ctx context.Context, refreshToken, sessionID, userID string, now time.Time) error {
	sess, err := m.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Valid(now) {
		return ErrUnauthorized
	}
	if security.FingerprintEqual(refreshToken, sess.RefreshFingerprint) {
		// The guard matches again on re-read, so the swap lost a transient
		// race rather than hitting a rotated token. Not reuse.
		return ErrUnauthorized
	}
	err = m.recorder.InTx(ctx, m.store, func(st store.Store, rec *audit.TxRecorder) error {
		if _, err := st.Sessions().Revoke(ctx, sessionID, domain.ReasonRefreshReuse, now); err != nil {
			return err
		}
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: userID,
			Action:      auditdomain.ActionRefreshReuse,
			TargetType:  "session",
			TargetID:    sessionID,
		})
	})
	if err != nil {
		return err
	}
	return ErrReplayDetected
}

// Logout revokes the session referenced by the refresh token. Idempotent:
// revoking an already-revoked session is a no-op.
func (m *Manager) Logout(ctx context.Context, refreshToken string) error {
	claims, err := m.codec.Decode(refreshToken, security.TokenTypeRefresh)
	if err != nil {
		return security.ErrInvalidToken
	}
	return m.revoke(ctx, claims.SessionID, domain.ReasonLogout, claims.Subject, auditdomain.ActionLogout, false)
}

// Revoke terminates one session on behalf of an admin. Returns ErrNotFound
// when the session does not exist; revoking a revoked session is a no-op.
func (m *Manager) Revoke(ctx context.Context, sessionID, actorUserID string) error {
	return m.revoke(ctx, sessionID, domain.ReasonAdminRevoke, actorUserID, auditdomain.ActionAdminRevoke, true)
}

func (m *Manager) revoke(ctx context.Context, sessionID, reason, actorUserID, action string, wantExists bool) error {
	now := m.now().UTC()
	sess, err := m.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		if wantExists {
			return ErrNotFound
		}
		return nil
	}
	if sess.Revoked() {
		return nil
	}
	return m.recorder.InTx(ctx, m.store, func(st store.Store, rec *audit.TxRecorder) error {
		changed, err := st.Sessions().Revoke(ctx, sessionID, reason, now)
		if err != nil {
			return err
		}
		if !changed {
			return nil // lost the race to another revoke; still terminal
		}
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: actorUserID,
			Action:      action,
			TargetType:  "session",
			TargetID:    sessionID,
		})
	})
}

// RevokeAllForUser revokes every active session owned by the user in one
// transaction. Used by logout-all and by admin disable.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID, reason, actorUserID string) (int64, error) {
	now := m.now().UTC()
	var revoked int64
	err := m.recorder.InTx(ctx, m.store, func(st store.Store, rec *audit.TxRecorder) error {
		n, err := st.Sessions().RevokeAllForUser(ctx, userID, reason, now)
		if err != nil {
			return err
		}
		revoked = n
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: actorUserID,
			Action:      auditdomain.ActionLogoutAll,
			TargetType:  "user",
			TargetID:    userID,
			Metadata:    map[string]string{"reason": reason},
		})
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// ListSessions returns sessions newest first, for the admin surface.
func (m *Manager) ListSessions(ctx context.Context, limit, offset int32) ([]*domain.Session, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return m.store.Sessions().List(ctx, limit, offset)
}

func loginAction(p identitydomain.Provider) string {
	switch p {
	case identitydomain.ProviderGoogle:
		return auditdomain.ActionLoginGoogle
	case identitydomain.ProviderFacebook:
		return auditdomain.ActionLoginFacebook
	default:
		return auditdomain.ActionLoginNative
	}
}
