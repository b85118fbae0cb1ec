// Package service implements authentication: native register/login and
// OAuth bind-or-create. It never mints tokens; callers hand the verified
// (user, identity) pair to the session manager.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"genesis-iam/backend/internal/audit"
	auditdomain "genesis-iam/backend/internal/audit/domain"
	credentialdomain "genesis-iam/backend/internal/credential/domain"
	"genesis-iam/backend/internal/identity/domain"
	"genesis-iam/backend/internal/ids"
	profiledomain "genesis-iam/backend/internal/profile/domain"
	"genesis-iam/backend/internal/security"
	"genesis-iam/backend/internal/store"
	userdomain "genesis-iam/backend/internal/user/domain"
)

var (
	// ErrInvalidCredentials covers every native login failure: unknown
	// identifier, missing credential, inactive user, wrong password. One
	// error so responses cannot be used to probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyExists means the username or email is already registered.
	ErrAlreadyExists = errors.New("username or email already registered")
	// ErrForbidden means the account exists but is disabled.
	ErrForbidden = errors.New("account disabled")
	// ErrInvalidArgument wraps input validation failures.
	ErrInvalidArgument = errors.New("invalid argument")
)

// AuthService verifies who the caller is.
type AuthService struct {
	store    store.Store
	hasher   *security.Hasher
	recorder *audit.Recorder
	now      func() time.Time
}

// NewAuthService wires the service to its store, password hasher, and audit
// recorder.
func NewAuthService(st store.Store, hasher *security.Hasher, recorder *audit.Recorder) *AuthService {
	return &AuthService{store: st, hasher: hasher, recorder: recorder, now: time.Now}
}

// RegisterNative creates a user with a username/password identity. The user,
// identity, credential, empty profile, and audit entry commit in one
// transaction.
func (s *AuthService) RegisterNative(ctx context.Context, username, email, password string) (*userdomain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &userdomain.User{
		ID:        ids.New(),
		Role:      userdomain.RoleUser,
		Status:    userdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.recorder.InTx(ctx, s.store, func(st store.Store, rec *audit.TxRecorder) error {
		for _, identifier := range []string{username, email} {
			existing, err := st.Identities().GetNativeByIdentifier(ctx, identifier)
			if err != nil {
				return err
			}
			if existing != nil {
				return ErrAlreadyExists
			}
		}
		if err := st.Users().Create(ctx, user); err != nil {
			return err
		}
		ident := &domain.Identity{
			ID:             ids.New(),
			UserID:         user.ID,
			Provider:       domain.ProviderNative,
			ProviderUserID: username,
			Email:          email,
			Username:       username,
			CreatedAt:      now,
		}
		if err := st.Identities().Create(ctx, ident); err != nil {
			return err
		}
		cred := &credentialdomain.Credential{
			UserID:            user.ID,
			PasswordHash:      hash,
			PasswordUpdatedAt: now,
		}
		if err := st.Credentials().Create(ctx, cred); err != nil {
			return err
		}
		prof := &profiledomain.Profile{UserID: user.ID, UpdatedAt: now}
		if err := st.Profiles().Create(ctx, prof); err != nil {
			return err
		}
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: user.ID,
			Action:      auditdomain.ActionRegisterNative,
			TargetType:  "user",
			TargetID:    user.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AuthenticateNative checks a username-or-email identifier against the
// stored bcrypt digest. Every failure mode collapses into
// ErrInvalidCredentials.
func (s *AuthService) AuthenticateNative(ctx context.Context, identifier, secret string) (*userdomain.User, *domain.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}

	ident, err := s.store.Identities().GetNativeByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if ident == nil {
		return nil, nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !user.IsActive() {
		return nil, nil, ErrInvalidCredentials
	}
	cred, err := s.store.Credentials().GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if cred == nil || !s.hasher.Verify([]byte(secret), cred.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}
	return user, ident, nil
}

// BindOrCreateOAuth resolves an external provider assertion to a local user.
// A known (provider, subject) pair returns the bound user; an unknown pair
// provisions a user, identity, and claim-seeded profile in one transaction.
// Disabled users are rejected with ErrForbidden.
func (s *AuthService) BindOrCreateOAuth(ctx context.Context, provider domain.Provider, subject string, claims domain.ExternalClaims) (*userdomain.User, *domain.Identity, error) {
	if !domain.ValidProvider(provider) || provider == domain.ProviderNative {
		return nil, nil, ErrInvalidArgument
	}
	if subject == "" {
		return nil, nil, ErrInvalidArgument
	}

	ident, err := s.store.Identities().GetByProviderSubject(ctx, provider, subject)
	if err != nil {
		return nil, nil, err
	}
	if ident != nil {
		user, err := s.store.Users().GetByID(ctx, ident.UserID)
		if err != nil {
			return nil, nil, err
		}
		if user == nil || !user.IsActive() {
			return nil, nil, ErrForbidden
		}
		return user, ident, nil
	}

	now := s.now().UTC()
	user := &userdomain.User{
		ID:        ids.New(),
		Role:      userdomain.RoleUser,
		Status:    userdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ident = &domain.Identity{
		ID:             ids.New(),
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: subject,
		Email:          strings.ToLower(claims.Email),
		EmailVerified:  claims.EmailVerified,
		CreatedAt:      now,
	}
	prof := &profiledomain.Profile{
		UserID:     user.ID,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		PictureURL: claims.PictureURL,
		Locale:     claims.Locale,
		UpdatedAt:  now,
	}
	err = s.recorder.InTx(ctx, s.store, func(st store.Store, rec *audit.TxRecorder) error {
		if err := st.Users().Create(ctx, user); err != nil {
			return err
		}
		if err := st.Identities().Create(ctx, ident); err != nil {
			return err
		}
		if err := st.Profiles().Create(ctx, prof); err != nil {
			return err
		}
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: user.ID,
			Action:      auditdomain.ActionOAuthCreated,
			TargetType:  "user",
			TargetID:    user.ID,
			Metadata:    map[string]string{"provider": string(provider)},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return user, ident, nil
}

// NativeIdentity returns the user's native identity, or nil when the user
// signed up through an external provider only.
func (s *AuthService) NativeIdentity(ctx context.Context, userID string) (*domain.Identity, error) {
	return s.store.Identities().GetByUserAndProvider(ctx, userID, domain.ProviderNative)
}

// UpdateContact changes the username and/or email on a user's native
// identity. Nil fields are left alone. Uniqueness is re-checked against
// other native identities.
func (s *AuthService) UpdateContact(ctx context.Context, userID string, username, email *string) (*domain.Identity, error) {
	var updated *domain.Identity
	err := s.recorder.InTx(ctx, s.store, func(st store.Store, rec *audit.TxRecorder) error {
		ident, err := st.Identities().GetByUserAndProvider(ctx, userID, domain.ProviderNative)
		if err != nil {
			return err
		}
		if ident == nil {
			return ErrInvalidArgument
		}
		if username != nil {
			name := strings.TrimSpace(*username)
			if err := validateUsername(name); err != nil {
				return err
			}
			if name != ident.Username {
				if err := s.checkIdentifierFree(ctx, st, name, ident.ID); err != nil {
					return err
				}
				ident.Username = name
				ident.ProviderUserID = name
			}
		}
		if email != nil {
			addr := strings.ToLower(strings.TrimSpace(*email))
			if err := validateEmail(addr); err != nil {
				return err
			}
			if addr != ident.Email {
				if err := s.checkIdentifierFree(ctx, st, addr, ident.ID); err != nil {
					return err
				}
				ident.Email = addr
				ident.EmailVerified = false
			}
		}
		if err := st.Identities().UpdateContact(ctx, ident.ID, ident.Username, ident.Email); err != nil {
			return err
		}
		updated = ident
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: userID,
			Action:      auditdomain.ActionUpdateMe,
			TargetType:  "user",
			TargetID:    userID,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *AuthService) checkIdentifierFree(ctx context.Context, st store.Store, identifier, selfID string) error {
	existing, err := st.Identities().GetNativeByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrAlreadyExists
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 64 {
		return invalidf("username must be 3-64 characters")
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '-' {
			return invalidf("username may contain letters, digits, '_', '.', '-'")
		}
	}
	if strings.Contains(username, "@") {
		return invalidf("username may not contain '@'")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalidf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalidf("email is not a valid address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return invalidf("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return invalidf("password must be at most 72 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return invalidf("password needs an upper, a lower, and a digit")
	}
	return nil
}

func invalidf(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}
