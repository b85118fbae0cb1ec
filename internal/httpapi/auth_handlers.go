package httpapi

import (
	"net/http"

	identitydomain "genesis-iam/backend/internal/identity/domain"
	sessiondomain "genesis-iam/backend/internal/session/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.RegisterNative(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	ident, err := a.auth.NativeIdentity(r.Context(), user.ID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(user, ident))
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ident, err := a.auth.AuthenticateNative(r.Context(), req.Identifier, req.Password)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	pair, err := a.sessions.CreateSession(r.Context(), user, ident, clientContext(r))
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

type oauthCallbackRequest struct {
	// Token is the provider-issued credential: a Google ID token or a
	// Facebook access token.
	Token string `json:"token"`
}

func (a *API) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := identitydomain.Provider(r.PathValue("provider"))
	if !identitydomain.ValidProvider(provider) || provider == identitydomain.ProviderNative {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	var req oauthCallbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	subject, claims, err := a.verifier.Verify(r.Context(), provider, req.Token)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	user, ident, err := a.auth.BindOrCreateOAuth(r.Context(), provider, subject, claims)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	pair, err := a.sessions.CreateSession(r.Context(), user, ident, clientContext(r))
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.sessions.RotateRefresh(r.Context(), req.RefreshToken, clientContext(r))
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	n, err := a.sessions.RevokeAllForUser(r.Context(), user.ID, sessiondomain.ReasonLogoutAll, user.ID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}
