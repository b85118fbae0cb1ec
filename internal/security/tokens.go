package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"genesis-iam/backend/internal/ids"
)

// ErrInvalidToken is returned when a token is malformed, expired, not yet
// valid, carries the wrong type, or fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the signed claim set carried by both token types. Subject is the
// user id; SessionID binds the token to one session row.
type Claims struct {
	jwt.RegisteredClaims
	SessionID  string    `json:"sid"`
	Role       string    `json:"role"`
	AuthMethod string    `json:"amr"`
	TokenType  TokenType `json:"token_type"`
}

// TokenCodec issues and decodes HS256-signed JWTs. It is the only component
// that holds the signing key; session validity is checked elsewhere.
type TokenCodec struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the codec's time source. Useful for tests.
func WithClock(fn func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewTokenCodec returns a codec signing with the given symmetric key. The key
// must be externally supplied and non-empty; there is no fallback default.
func NewTokenCodec(key []byte, issuer, audience string, opts ...CodecOption) (*TokenCodec, error) {
	if len(key) == 0 {
		return nil, errors.New("security: signing key must not be empty")
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("security: issuer and audience are required")
	}
	c := &TokenCodec{key: key, issuer: issuer, audience: audience, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token of the given type for the user and session. iat, nbf,
// exp, and jti are always set here; callers cannot supply their own expiry.
// Returns the signed token, its jti, and the expiry time.
func (c *TokenCodec) Issue(userID, sessionID, role, authMethod string, typ TokenType, ttl time.Duration) (token, jti string, expiresAt time.Time, err error) {
	if ttl <= 0 {
		return "", "", time.Time{}, errors.New("security: ttl must be positive")
	}
	jti = ids.New()
	now := c.now().UTC()
	expiresAt = now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID:  sessionID,
		Role:       role,
		AuthMethod: authMethod,
		TokenType:  typ,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// Decode verifies the token's signature, issuer, audience, time claims, and
// type. Every failure mode collapses into ErrInvalidToken.
func (c *TokenCodec) Decode(tokenString string, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.key, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.NotBefore == nil || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.SessionID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
