// Package httpapi is the JSON-over-HTTP boundary. Handlers decode, call a
// service, and map sentinel errors to status codes; no business rules live
// here.
package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"genesis-iam/backend/internal/identity/oauth"
	identityservice "genesis-iam/backend/internal/identity/service"
	"genesis-iam/backend/internal/obs"
	"genesis-iam/backend/internal/policy"
	profileservice "genesis-iam/backend/internal/profile/service"
	sessionservice "genesis-iam/backend/internal/session/service"
	userservice "genesis-iam/backend/internal/user/service"
)

// ReadyProbe checks downstream readiness (DB ping, policy engine).
type ReadyProbe struct {
	DB     *sql.DB
	Policy *policy.Engine
}

// Check returns the first failing dependency's error.
func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Policy != nil {
		if err := rp.Policy.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Options carries everything the API needs.
type Options struct {
	Auth     *identityservice.AuthService
	Sessions *sessionservice.Manager
	Users    *userservice.AdminService
	Profiles *profileservice.Service
	Verifier oauth.Verifier
	Policy   *policy.Engine
	Ready    ReadyProbe
	Logger   *slog.Logger

	// RateRPS of 0 disables the auth endpoint rate limit.
	RateRPS   float64
	RateBurst int
	Version   string
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	auth     *identityservice.AuthService
	sessions *sessionservice.Manager
	users    *userservice.AdminService
	profiles *profileservice.Service
	verifier oauth.Verifier
	policy   *policy.Engine
	ready    ReadyProbe
	log      *slog.Logger
	version  string
}

// New builds the API and registers all routes.
func New(opts Options) *API {
	a := &API{
		mux:      http.NewServeMux(),
		auth:     opts.Auth,
		sessions: opts.Sessions,
		users:    opts.Users,
		profiles: opts.Profiles,
		verifier: opts.Verifier,
		policy:   opts.Policy,
		ready:    opts.Ready,
		log:      opts.Logger,
		version:  opts.Version,
	}
	if a.log == nil {
		a.log = obs.Logger()
	}

	limit := RateLimit(opts.RateRPS, opts.RateBurst)

	// Auth. The credential-bearing endpoints sit behind the rate limit.
	a.mux.Handle("POST /v1/auth/register", limit(http.HandlerFunc(a.handleRegister)))
	a.mux.Handle("POST /v1/auth/login", limit(http.HandlerFunc(a.handleLogin)))
	a.mux.Handle("POST /v1/auth/oauth/{provider}/callback", limit(http.HandlerFunc(a.handleOAuthCallback)))
	a.mux.Handle("POST /v1/auth/refresh", limit(http.HandlerFunc(a.handleRefresh)))
	a.mux.HandleFunc("POST /v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("POST /v1/auth/logout-all", a.authenticated(a.handleLogoutAll))

	// Current user.
	a.mux.HandleFunc("GET /v1/users/me", a.authenticated(a.handleMe))
	a.mux.HandleFunc("PUT /v1/users/me", a.authenticated(a.handleUpdateMe))
	a.mux.HandleFunc("GET /v1/users/me/profile", a.authenticated(a.handleGetProfile))
	a.mux.HandleFunc("PUT /v1/users/me/profile", a.authenticated(a.handleUpdateProfile))

	// Admin.
	a.mux.HandleFunc("GET /v1/admin/users", a.admin(policy.ActionUsersList, a.handleAdminListUsers))
	a.mux.HandleFunc("GET /v1/admin/users/{id}", a.admin(policy.ActionUsersGet, a.handleAdminGetUser))
	a.mux.HandleFunc("PATCH /v1/admin/users/{id}", a.admin(policy.ActionUsersUpdate, a.handleAdminUpdateUser))
	a.mux.HandleFunc("GET /v1/admin/sessions", a.admin(policy.ActionSessionsList, a.handleAdminListSessions))
	a.mux.HandleFunc("POST /v1/admin/sessions/{id}/revoke", a.admin(policy.ActionSessionRevoke, a.handleAdminRevokeSession))
	a.mux.HandleFunc("GET /v1/admin/audit-logs", a.admin(policy.ActionAuditList, a.handleAdminListAuditLogs))

	// Probes and metrics.
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux in the shared middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = Logging(a.log, h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}
