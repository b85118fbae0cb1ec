package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"genesis-iam/backend/internal/identity/oauth"
	identityservice "genesis-iam/backend/internal/identity/service"
	"genesis-iam/backend/internal/obs"
	profileservice "genesis-iam/backend/internal/profile/service"
	"genesis-iam/backend/internal/security"
	sessionservice "genesis-iam/backend/internal/session/service"
	userservice "genesis-iam/backend/internal/user/service"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleServiceError is the single place sentinel errors become statuses.
func (a *API) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identityservice.ErrInvalidArgument),
		errors.Is(err, userservice.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identityservice.ErrInvalidCredentials):
		obs.CountAuthFailure("invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, security.ErrInvalidToken):
		obs.CountAuthFailure("invalid_token")
		writeError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, sessionservice.ErrReplayDetected):
		obs.CountAuthFailure("refresh_reuse")
		writeError(w, http.StatusUnauthorized, "refresh token reuse detected; session revoked")
	case errors.Is(err, sessionservice.ErrUnauthorized):
		obs.CountAuthFailure("session_invalid")
		writeError(w, http.StatusUnauthorized, "session no longer valid")
	case errors.Is(err, oauth.ErrUnverified):
		obs.CountAuthFailure("oauth_unverified")
		writeError(w, http.StatusUnauthorized, "provider token could not be verified")
	case errors.Is(err, identityservice.ErrForbidden),
		errors.Is(err, userservice.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, userservice.ErrNotFound),
		errors.Is(err, sessionservice.ErrNotFound),
		errors.Is(err, profileservice.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, identityservice.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		a.log.Error("internal error", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
