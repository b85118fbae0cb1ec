package security

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T, opts ...CodecOption) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec([]byte("test-signing-key-0123456789abcdef"), "genesis-iam", "genesis-api", opts...)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return c
}

func TestNewTokenCodec_RequiresKey(t *testing.T) {
	if _, err := NewTokenCodec(nil, "iss", "aud"); err == nil {
		t.Fatal("NewTokenCodec with empty key: want error")
	}
	if _, err := NewTokenCodec([]byte("k"), "", "aud"); err == nil {
		t.Fatal("NewTokenCodec with empty issuer: want error")
	}
}

func TestTokenCodec_IssueAndDecode(t *testing.T) {
	c := newTestCodec(t)

	token, jti, exp, err := c.Issue("u1", "s1", "user", "native", TokenTypeAccess, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	claims, err := c.Decode(token, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "u1" || claims.SessionID != "s1" {
		t.Errorf("Decode: got sub=%q sid=%q", claims.Subject, claims.SessionID)
	}
	if claims.Role != "user" || claims.AuthMethod != "native" {
		t.Errorf("Decode: got role=%q amr=%q", claims.Role, claims.AuthMethod)
	}
	if claims.ID != jti {
		t.Errorf("Decode: jti = %q, want %q", claims.ID, jti)
	}
	if claims.IssuedAt == nil || claims.NotBefore == nil || claims.ExpiresAt == nil {
		t.Error("Decode: mandatory time claims missing")
	}
}

func TestTokenCodec_WrongType(t *testing.T) {
	c := newTestCodec(t)
	refresh, _, _, err := c.Issue("u1", "s1", "user", "native", TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Decode(refresh, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode refresh as access: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_Malformed(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.Decode("not-a-token", TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode malformed: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_WrongKey(t *testing.T) {
	c := newTestCodec(t)
	token, _, _, err := c.Issue("u1", "s1", "user", "native", TokenTypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other, err := NewTokenCodec([]byte("a-completely-different-key-value"), "genesis-iam", "genesis-api")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	if _, err := other.Decode(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode with wrong key: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	c := newTestCodec(t, WithClock(func() time.Time { return now }))

	token, _, _, err := c.Issue("u1", "s1", "user", "native", TokenTypeAccess, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = issuedAt.Add(14 * time.Minute)
	if _, err := c.Decode(token, TokenTypeAccess); err != nil {
		t.Fatalf("Decode before expiry: %v", err)
	}

	now = issuedAt.Add(16 * time.Minute)
	if _, err := c.Decode(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode after expiry: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_NotYetValid(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	c := newTestCodec(t, WithClock(func() time.Time { return now }))

	token, _, _, err := c.Issue("u1", "s1", "user", "native", TokenTypeAccess, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = issuedAt.Add(-time.Minute)
	if _, err := c.Decode(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode before nbf: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_WrongAudience(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewTokenCodec([]byte("test-signing-key-0123456789abcdef"), "genesis-iam", "some-other-api")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	token, _, _, err := other.Issue("u1", "s1", "user", "native", TokenTypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Decode(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Decode with wrong audience: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenCodec_FreshJTIPerIssue(t *testing.T) {
	c := newTestCodec(t)
	_, jti1, _, err := c.Issue("u1", "s1", "user", "native", TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, jti2, _, err := c.Issue("u1", "s1", "user", "native", TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if jti1 == jti2 {
		t.Error("consecutive issues produced the same jti")
	}
}
