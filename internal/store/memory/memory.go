// Package memory implements store.Store with mutex-guarded maps. It backs
// service tests and is not durable; InTx runs fn directly without rollback.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	auditdomain "genesis-iam/backend/internal/audit/domain"
	credentialdomain "genesis-iam/backend/internal/credential/domain"
	identitydomain "genesis-iam/backend/internal/identity/domain"
	profiledomain "genesis-iam/backend/internal/profile/domain"
	sessiondomain "genesis-iam/backend/internal/session/domain"
	"genesis-iam/backend/internal/store"
	userdomain "genesis-iam/backend/internal/user/domain"
)

// Store is an in-memory store.Store. Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	users       map[string]*userdomain.User
	identities  map[string]*identitydomain.Identity
	credentials map[string]*credentialdomain.Credential
	profiles    map[string]*profiledomain.Profile
	sessions    map[string]*sessiondomain.Session
	audit       []*auditdomain.Entry
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		users:       make(map[string]*userdomain.User),
		identities:  make(map[string]*identitydomain.Identity),
		credentials: make(map[string]*credentialdomain.Credential),
		profiles:    make(map[string]*profiledomain.Profile),
		sessions:    make(map[string]*sessiondomain.Session),
	}
}

func (s *Store) Users() store.UserStore             { return (*userStore)(s) }
func (s *Store) Identities() store.IdentityStore    { return (*identityStore)(s) }
func (s *Store) Credentials() store.CredentialStore { return (*credentialStore)(s) }
func (s *Store) Profiles() store.ProfileStore       { return (*profileStore)(s) }
func (s *Store) Sessions() store.SessionStore       { return (*sessionStore)(s) }
func (s *Store) Audit() store.AuditStore            { return (*auditStore)(s) }

func (s *Store) InTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

// AuditEntries returns a copy of all appended audit entries, oldest first.
func (s *Store) AuditEntries() []*auditdomain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auditdomain.Entry, len(s.audit))
	copy(out, s.audit)
	return out
}

// Session returns the stored session by id, or nil.
func (s *Store) Session(id string) *sessiondomain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		cp := *sess
		return &cp
	}
	return nil
}

// Users ----------------------------------------------------------------------

type userStore Store

func (s *userStore) Create(ctx context.Context, u *userdomain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *userStore) List(ctx context.Context, limit, offset int32) ([]*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*userdomain.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (s *userStore) Update(ctx context.Context, u *userdomain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) CountByRole(ctx context.Context, role userdomain.Role) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// Identities -----------------------------------------------------------------

type identityStore Store

func (s *identityStore) Create(ctx context.Context, i *identitydomain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *i
	s.identities[i.ID] = &cp
	return nil
}

func (s *identityStore) GetByID(ctx context.Context, id string) (*identitydomain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.identities[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, nil
}

func (s *identityStore) GetByProviderSubject(ctx context.Context, provider identitydomain.Provider, providerUserID string) (*identitydomain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.identities {
		if i.Provider == provider && i.ProviderUserID == providerUserID {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *identityStore) GetNativeByIdentifier(ctx context.Context, identifier string) (*identitydomain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.identities {
		if i.Provider != identitydomain.ProviderNative {
			continue
		}
		if i.Username == identifier || (i.Email != "" && i.Email == identifier) {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *identityStore) GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.Provider) (*identitydomain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.identities {
		if i.UserID == userID && i.Provider == provider {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *identityStore) UpdateContact(ctx context.Context, id, username, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.identities[id]; ok {
		i.Username = username
		i.Email = email
		if i.Provider == identitydomain.ProviderNative {
			i.ProviderUserID = username
		}
	}
	return nil
}

func (s *identityStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.identities[id]; ok {
		t := at
		i.LastLoginAt = &t
	}
	return nil
}

// Credentials ----------------------------------------------------------------

type credentialStore Store

func (s *credentialStore) Create(ctx context.Context, c *credentialdomain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.credentials[c.UserID] = &cp
	return nil
}

func (s *credentialStore) GetByUserID(ctx context.Context, userID string) (*credentialdomain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.credentials[userID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *credentialStore) UpdateHash(ctx context.Context, userID, passwordHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.credentials[userID]; ok {
		c.PasswordHash = passwordHash
		c.PasswordUpdatedAt = at
		c.MustReset = false
	}
	return nil
}

// Profiles -------------------------------------------------------------------

type profileStore Store

func (s *profileStore) Create(ctx context.Context, p *profiledomain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *profileStore) GetByUserID(ctx context.Context, userID string) (*profiledomain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *profileStore) Update(ctx context.Context, p *profiledomain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

// Sessions -------------------------------------------------------------------

type sessionStore Store

func (s *sessionStore) Create(ctx context.Context, sess *sessiondomain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *sessionStore) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, nil
}

func (s *sessionStore) List(ctx context.Context, limit, offset int32) ([]*sessiondomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*sessiondomain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (s *sessionStore) RotateFingerprint(ctx context.Context, sessionID, currentFingerprint, newFingerprint, newJTI string, client sessiondomain.ClientContext) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.RevokedAt != nil || sess.RefreshFingerprint != currentFingerprint {
		return false, nil
	}
	sess.RefreshFingerprint = newFingerprint
	sess.JTI = newJTI
	sess.IPAddress = client.IPAddress
	sess.UserAgent = client.UserAgent
	return true, nil
}

func (s *sessionStore) Revoke(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return false, nil
	}
	t := at
	sess.RevokedAt = &t
	sess.RevokedReason = reason
	return true, nil
}

func (s *sessionStore) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			t := at
			sess.RevokedAt = &t
			sess.RevokedReason = reason
			n++
		}
	}
	return n, nil
}

func (s *sessionStore) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) || (sess.RevokedAt != nil && sess.RevokedAt.Before(cutoff)) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Audit ----------------------------------------------------------------------

type auditStore Store

func (s *auditStore) Append(ctx context.Context, e *auditdomain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *auditStore) List(ctx context.Context, limit, offset int32) ([]*auditdomain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newest := make([]*auditdomain.Entry, len(s.audit))
	for i := range s.audit {
		cp := *s.audit[len(s.audit)-1-i]
		newest[i] = &cp
	}
	return page(newest, limit, offset), nil
}

func page[T any](all []T, limit, offset int32) []T {
	if offset >= int32(len(all)) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < int32(len(all)) {
		all = all[:limit]
	}
	return all
}
