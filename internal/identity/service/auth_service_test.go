package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"genesis-iam/backend/internal/audit"
	auditdomain "genesis-iam/backend/internal/audit/domain"
	"genesis-iam/backend/internal/identity/domain"
	"genesis-iam/backend/internal/security"
	"genesis-iam/backend/internal/store/memory"
	userdomain "genesis-iam/backend/internal/user/domain"
)

// Low bcrypt cost keeps the suite fast.
func newTestService(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	mem := memory.New()
	return NewAuthService(mem, security.NewHasher(4), audit.NewRecorder(nil)), mem
}

func TestRegisterNative(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	user, err := svc.RegisterNative(ctx, "alice", "Alice@Example.com", "Secur3Pass!")
	if err != nil {
		t.Fatalf("RegisterNative: %v", err)
	}
	if user.Role != userdomain.RoleUser || user.Status != userdomain.StatusActive {
		t.Errorf("new user role/status = %s/%s, want user/active", user.Role, user.Status)
	}

	ident, err := mem.Identities().GetNativeByIdentifier(ctx, "alice")
	if err != nil || ident == nil {
		t.Fatalf("identity lookup: %v", err)
	}
	if ident.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", ident.Email)
	}

	cred, err := mem.Credentials().GetByUserID(ctx, user.ID)
	if err != nil || cred == nil {
		t.Fatalf("credential lookup: %v", err)
	}
	if cred.PasswordHash == "Secur3Pass!" {
		t.Error("password stored raw")
	}

	prof, err := mem.Profiles().GetByUserID(ctx, user.ID)
	if err != nil || prof == nil {
		t.Fatalf("profile lookup: %v", err)
	}

	entries := mem.AuditEntries()
	if len(entries) != 1 || entries[0].Action != auditdomain.ActionRegisterNative {
		t.Errorf("audit entries = %+v, want one %s", entries, auditdomain.ActionRegisterNative)
	}
}

func TestRegisterNativeDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RegisterNative(ctx, "alice", "alice@example.com", "Secur3Pass!"); err != nil {
		t.Fatalf("RegisterNative: %v", err)
	}
	if _, err := svc.RegisterNative(ctx, "alice", "other@example.com", "Secur3Pass!"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate username err = %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.RegisterNative(ctx, "bob", "alice@example.com", "Secur3Pass!"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate email err = %v, want ErrAlreadyExists", err)
	}
}

func TestRegisterNativeValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "al", "a@example.com", "Secur3Pass!"},
		{"username with at", "al@ice", "a@example.com", "Secur3Pass!"},
		{"bad email", "alice", "not-an-email", "Secur3Pass!"},
		{"empty email", "alice", "", "Secur3Pass!"},
		{"short password", "alice", "a@example.com", "Ab1"},
		{"no digit", "alice", "a@example.com", "Password!"},
		{"no upper", "alice", "a@example.com", "password1!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RegisterNative(ctx, tc.username, tc.email, tc.password); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestAuthenticateNative(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	user, err := svc.RegisterNative(ctx, "alice", "alice@example.com", "Secur3Pass!")
	if err != nil {
		t.Fatalf("RegisterNative: %v", err)
	}

	// Username and email both work as the identifier.
	for _, identifier := range []string{"alice", "alice@example.com", "Alice@Example.com"} {
		got, ident, err := svc.AuthenticateNative(ctx, identifier, "Secur3Pass!")
		if err != nil {
			t.Fatalf("AuthenticateNative(%q): %v", identifier, err)
		}
		if got.ID != user.ID || ident.Username != "alice" {
			t.Errorf("AuthenticateNative(%q) resolved wrong account", identifier)
		}
	}

	// Every failure collapses into the same error.
	failures := []struct {
		name       string
		identifier string
		secret     string
	}{
		{"unknown identifier", "nobody", "Secur3Pass!"},
		{"wrong password", "alice", "WrongPass1!"},
		{"empty password", "alice", ""},
		{"empty identifier", "", "Secur3Pass!"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.AuthenticateNative(ctx, tc.identifier, tc.secret); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}

	// A disabled user fails the same way as a bad password.
	now := time.Now().UTC()
	user.Status = userdomain.StatusDisabled
	user.DisabledAt = &now
	if err := mem.Users().Update(ctx, user); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	if _, _, err := svc.AuthenticateNative(ctx, "alice", "Secur3Pass!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("disabled user err = %v, want ErrInvalidCredentials", err)
	}
}

func TestBindOrCreateOAuth(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	claims := domain.ExternalClaims{
		Email:         "carol@example.com",
		EmailVerified: true,
		GivenName:     "Carol",
		FamilyName:    "Jones",
		PictureURL:    "https://img.example.com/carol.png",
		Locale:        "en",
	}

	user, ident, err := svc.BindOrCreateOAuth(ctx, domain.ProviderGoogle, "google-sub-1", claims)
	if err != nil {
		t.Fatalf("BindOrCreateOAuth: %v", err)
	}
	if ident.Provider != domain.ProviderGoogle || ident.ProviderUserID != "google-sub-1" {
		t.Errorf("identity = %+v", ident)
	}

	// Profile seeded from provider claims.
	prof, err := mem.Profiles().GetByUserID(ctx, user.ID)
	if err != nil || prof == nil {
		t.Fatalf("profile lookup: %v", err)
	}
	if prof.GivenName != "Carol" || prof.FamilyName != "Jones" {
		t.Errorf("profile not seeded from claims: %+v", prof)
	}

	// Same subject binds to the same user; no second account.
	again, _, err := svc.BindOrCreateOAuth(ctx, domain.ProviderGoogle, "google-sub-1", claims)
	if err != nil {
		t.Fatalf("second BindOrCreateOAuth: %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("second login created a new user: %s != %s", again.ID, user.ID)
	}

	// Same subject under another provider is a separate account.
	other, _, err := svc.BindOrCreateOAuth(ctx, domain.ProviderFacebook, "google-sub-1", claims)
	if err != nil {
		t.Fatalf("facebook BindOrCreateOAuth: %v", err)
	}
	if other.ID == user.ID {
		t.Error("distinct providers must not share the (provider, subject) binding")
	}

	// Disabled users are rejected, not re-provisioned.
	now := time.Now().UTC()
	user.Status = userdomain.StatusDisabled
	user.DisabledAt = &now
	if err := mem.Users().Update(ctx, user); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	if _, _, err := svc.BindOrCreateOAuth(ctx, domain.ProviderGoogle, "google-sub-1", claims); !errors.Is(err, ErrForbidden) {
		t.Errorf("disabled user err = %v, want ErrForbidden", err)
	}
}

func TestBindOrCreateOAuthRejectsNative(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.BindOrCreateOAuth(context.Background(), domain.ProviderNative, "sub", domain.ExternalClaims{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("native provider err = %v, want ErrInvalidArgument", err)
	}
}

func TestUpdateContact(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	user, err := svc.RegisterNative(ctx, "alice", "alice@example.com", "Secur3Pass!")
	if err != nil {
		t.Fatalf("RegisterNative: %v", err)
	}
	if _, err := svc.RegisterNative(ctx, "bob", "bob@example.com", "Secur3Pass!"); err != nil {
		t.Fatalf("RegisterNative bob: %v", err)
	}

	newName := "alice2"
	ident, err := svc.UpdateContact(ctx, user.ID, &newName, nil)
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if ident.Username != "alice2" {
		t.Errorf("username = %q, want alice2", ident.Username)
	}

	// The old identifier no longer resolves; the new one does.
	if got, _ := mem.Identities().GetNativeByIdentifier(ctx, "alice"); got != nil {
		t.Error("old username still resolves")
	}
	if got, _ := mem.Identities().GetNativeByIdentifier(ctx, "alice2"); got == nil {
		t.Error("new username does not resolve")
	}

	// Taking bob's identifiers is a conflict.
	taken := "bob"
	if _, err := svc.UpdateContact(ctx, user.ID, &taken, nil); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("taken username err = %v, want ErrAlreadyExists", err)
	}
	takenMail := "bob@example.com"
	if _, err := svc.UpdateContact(ctx, user.ID, nil, &takenMail); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("taken email err = %v, want ErrAlreadyExists", err)
	}

	// Re-submitting your own values is a no-op, not a conflict.
	own := "alice2"
	if _, err := svc.UpdateContact(ctx, user.ID, &own, nil); err != nil {
		t.Errorf("own username err = %v, want nil", err)
	}
}
