package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userdomain "genesis-iam/backend/internal/user/domain"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

type ctxKey int

const userKey ctxKey = iota

// UserFromContext returns the authenticated user placed by the middleware.
func UserFromContext(ctx context.Context) (*userdomain.User, bool) {
	u, ok := ctx.Value(userKey).(*userdomain.User)
	return u, ok
}

// authenticated gates a handler behind a valid access token and a live
// session. The resolved user rides the request context.
func (a *API) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		user, err := a.sessions.AuthorizeAccess(r.Context(), token)
		if err != nil {
			a.handleServiceError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next(w, r.WithContext(ctx))
	}
}

// admin gates a handler behind authentication plus a policy decision for
// the given action.
func (a *API) admin(action string, next http.HandlerFunc) http.HandlerFunc {
	return a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		allowed, err := a.policy.Allow(r.Context(), string(user.Role), action)
		if err != nil {
			a.handleServiceError(w, r, err)
			return
		}
		if !allowed {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
