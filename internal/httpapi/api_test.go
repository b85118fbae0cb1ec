package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"genesis-iam/backend/internal/audit"
	identitydomain "genesis-iam/backend/internal/identity/domain"
	identityservice "genesis-iam/backend/internal/identity/service"
	"genesis-iam/backend/internal/policy"
	profileservice "genesis-iam/backend/internal/profile/service"
	"genesis-iam/backend/internal/security"
	sessionservice "genesis-iam/backend/internal/session/service"
	"genesis-iam/backend/internal/store/memory"
	userservice "genesis-iam/backend/internal/user/service"
)

type fakeVerifier struct {
	subject string
	claims  identitydomain.ExternalClaims
	err     error
}

func (f *fakeVerifier) Verify(ctx context.Context, provider identitydomain.Provider, token string) (string, identitydomain.ExternalClaims, error) {
	if f.err != nil {
		return "", identitydomain.ExternalClaims{}, f.err
	}
	return f.subject, f.claims, nil
}

type testEnv struct {
	api *API
	mem *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := memory.New()
	codec, err := security.NewTokenCodec([]byte("test-secret"), "genesis-iam", "genesis-api")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	recorder := audit.NewRecorder(nil)
	hasher := security.NewHasher(4)
	engine, err := policy.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	api := New(Options{
		Auth:     identityservice.NewAuthService(mem, hasher, recorder),
		Sessions: sessionservice.NewManager(mem, codec, recorder, 15*time.Minute, 168*time.Hour),
		Users:    userservice.NewAdminService(mem, recorder),
		Profiles: profileservice.NewService(mem, recorder),
		Verifier: &fakeVerifier{subject: "g-1", claims: identitydomain.ExternalClaims{Email: "oauth@example.com", EmailVerified: true, GivenName: "Oscar"}},
		Policy:   engine,
		Ready:    ReadyProbe{Policy: engine},
		Version:  "test",
	})

	// Bootstrapped root admin for the admin surface tests.
	if _, err := userservice.EnsureRootAdmin(context.Background(), mem, hasher, recorder, "root", "root@example.com", "R00tSecret!"); err != nil {
		t.Fatalf("EnsureRootAdmin: %v", err)
	}
	return &testEnv{api: api, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func (e *testEnv) register(t *testing.T, username, email, password string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": password,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body.String())
	}
}

func (e *testEnv) login(t *testing.T, identifier, password string) tokenResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"identifier": identifier, "password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", w.Code, w.Body.String())
	}
	return decodeBody[tokenResponse](t, w)
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secur3Pass!")

	// Duplicate registration conflicts.
	w := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "Secur3Pass!",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", w.Code)
	}

	pair := env.login(t, "alice", "Secur3Pass!")
	if pair.TokenType != "bearer" || pair.AccessToken == "" {
		t.Fatalf("token response = %+v", pair)
	}

	me := env.do(t, http.MethodGet, "/v1/users/me", pair.AccessToken, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("me = %d: %s", me.Code, me.Body.String())
	}
	user := decodeBody[userResponse](t, me)
	if user.Username != "alice" || user.Role != "user" {
		t.Errorf("me = %+v", user)
	}

	// Wrong password is a generic 401.
	bad := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"identifier": "alice", "password": "WrongPass1!",
	})
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", bad.Code)
	}

	// No token, no /me.
	anon := env.do(t, http.MethodGet, "/v1/users/me", "", nil)
	if anon.Code != http.StatusUnauthorized {
		t.Errorf("anonymous me = %d, want 401", anon.Code)
	}
}

func TestRefreshRotationAndReplay(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secur3Pass!")
	first := env.login(t, "alice", "Secur3Pass!")

	w := env.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": first.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d: %s", w.Code, w.Body.String())
	}
	second := decodeBody[tokenResponse](t, w)

	// Replaying the rotated token gets 401 and kills the session.
	replay := env.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": first.RefreshToken})
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("replay = %d, want 401", replay.Code)
	}
	after := env.do(t, http.MethodGet, "/v1/users/me", second.AccessToken, nil)
	if after.Code != http.StatusUnauthorized {
		t.Errorf("me after replay = %d, want 401", after.Code)
	}
}

func TestLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secur3Pass!")
	pair := env.login(t, "alice", "Secur3Pass!")

	w := env.do(t, http.MethodPost, "/v1/auth/logout", "", map[string]string{"refresh_token": pair.RefreshToken})
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout = %d: %s", w.Code, w.Body.String())
	}
	me := env.do(t, http.MethodGet, "/v1/users/me", pair.AccessToken, nil)
	if me.Code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", me.Code)
	}
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secur3Pass!")
	one := env.login(t, "alice", "Secur3Pass!")
	two := env.login(t, "alice", "Secur3Pass!")

	w := env.do(t, http.MethodPost, "/v1/auth/logout-all", one.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout-all = %d: %s", w.Code, w.Body.String())
	}
	out := decodeBody[map[string]int64](t, w)
	if out["revoked"] != 2 {
		t.Errorf("revoked = %d, want 2", out["revoked"])
	}
	for _, pair := range []tokenResponse{one, two} {
		if me := env.do(t, http.MethodGet, "/v1/users/me", pair.AccessToken, nil); me.Code != http.StatusUnauthorized {
			t.Errorf("me after logout-all = %d, want 401", me.Code)
		}
	}
}

func TestOAuthCallback(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/oauth/google/callback", "", map[string]string{"token": "provider-token"})
	if w.Code != http.StatusOK {
		t.Fatalf("oauth callback = %d: %s", w.Code, w.Body.String())
	}
	pair := decodeBody[tokenResponse](t, w)
	if me := env.do(t, http.MethodGet, "/v1/users/me", pair.AccessToken, nil); me.Code != http.StatusOK {
		t.Errorf("me after oauth = %d: %s", me.Code, me.Body.String())
	}

	// Profile was seeded from the provider claims.
	prof := env.do(t, http.MethodGet, "/v1/users/me/profile", pair.AccessToken, nil)
	if prof.Code != http.StatusOK {
		t.Fatalf("profile = %d: %s", prof.Code, prof.Body.String())
	}
	p := decodeBody[profileResponse](t, prof)
	if p.GivenName != "Oscar" {
		t.Errorf("profile = %+v", p)
	}

	if bad := env.do(t, http.MethodPost, "/v1/auth/oauth/github/callback", "", map[string]string{"token": "x"}); bad.Code != http.StatusNotFound {
		t.Errorf("unknown provider = %d, want 404", bad.Code)
	}
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secur3Pass!")
	pair := env.login(t, "alice", "Secur3Pass!")

	w := env.do(t, http.MethodPut, "/v1/users/me/profile", pair.AccessToken, map[string]string{
		"given_name": "Alice", "locale": "en",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("profile update = %d: %s", w.Code, w.Body.String())
	}
	p := decodeBody[profileResponse](t, w)
	if p.GivenName != "Alice" || p.Locale != "en" {
		t.Errorf("profile = %+v", p)
	}
}

func TestAdminSurfaceAuthorization(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secur3Pass!")
	userPair := env.login(t, "alice", "Secur3Pass!")
	rootPair := env.login(t, "root@example.com", "R00tSecret!")

	// Plain users are shut out.
	if w := env.do(t, http.MethodGet, "/v1/admin/users", userPair.AccessToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("user admin list = %d, want 403", w.Code)
	}

	// The root admin sees the user list.
	w := env.do(t, http.MethodGet, "/v1/admin/users", rootPair.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("root admin list = %d: %s", w.Code, w.Body.String())
	}
	out := decodeBody[map[string][]userResponse](t, w)
	if len(out["users"]) != 2 {
		t.Errorf("users = %d, want 2", len(out["users"]))
	}

	// Promote alice to admin, then check the read-only surface.
	var aliceID string
	for _, u := range out["users"] {
		if u.Role == "user" {
			aliceID = u.ID
		}
	}
	patch := env.do(t, http.MethodPatch, "/v1/admin/users/"+aliceID, rootPair.AccessToken, map[string]string{"role": "admin"})
	if patch.Code != http.StatusOK {
		t.Fatalf("patch = %d: %s", patch.Code, patch.Body.String())
	}

	adminPair := env.login(t, "alice", "Secur3Pass!")
	if w := env.do(t, http.MethodGet, "/v1/admin/audit-logs", adminPair.AccessToken, nil); w.Code != http.StatusOK {
		t.Errorf("admin audit list = %d, want 200", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/v1/admin/users/"+aliceID, adminPair.AccessToken, map[string]string{"status": "disabled"}); w.Code != http.StatusForbidden {
		t.Errorf("admin user patch = %d, want 403", w.Code)
	}

	// Unknown user is 404, not 500.
	if w := env.do(t, http.MethodGet, "/v1/admin/users/nope", rootPair.AccessToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing user = %d, want 404", w.Code)
	}
}

func TestAdminRevokeSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "Secur3Pass!")
	userPair := env.login(t, "alice", "Secur3Pass!")
	rootPair := env.login(t, "root@example.com", "R00tSecret!")

	w := env.do(t, http.MethodGet, "/v1/admin/sessions", rootPair.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sessions list = %d: %s", w.Code, w.Body.String())
	}
	out := decodeBody[map[string][]sessionResponse](t, w)

	var target string
	for _, s := range out["sessions"] {
		if s.UserID != "" && s.RevokedAt == nil {
			// Find alice's session (not the root admin's own).
			me := env.do(t, http.MethodGet, "/v1/users/me", userPair.AccessToken, nil)
			if me.Code == http.StatusOK {
				u := decodeBody[userResponse](t, me)
				if s.UserID == u.ID {
					target = s.ID
				}
			}
		}
	}
	if target == "" {
		t.Fatal("could not find alice's session")
	}

	if w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/admin/sessions/%s/revoke", target), rootPair.AccessToken, nil); w.Code != http.StatusNoContent {
		t.Fatalf("revoke = %d: %s", w.Code, w.Body.String())
	}
	if me := env.do(t, http.MethodGet, "/v1/users/me", userPair.AccessToken, nil); me.Code != http.StatusUnauthorized {
		t.Errorf("me after admin revoke = %d, want 401", me.Code)
	}
	if w := env.do(t, http.MethodPost, "/v1/admin/sessions/nope/revoke", rootPair.AccessToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("revoke missing = %d, want 404", w.Code)
	}
}

func TestProbes(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Errorf("readyz = %d: %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Errorf("metrics = %d", w.Code)
	}
}
