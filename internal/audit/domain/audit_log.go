package domain

import "time"

// Entry is one append-only audit record. Entries are immutable once written;
// no code path updates or deletes them.
type Entry struct {
	ID          string
	ActorUserID string
	Action      string
	TargetType  string
	TargetID    string // empty when the action has no single target
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Actions recorded by the core.
const (
	ActionRegisterNative    = "register_native"
	ActionLoginNative       = "login_native"
	ActionLoginGoogle       = "login_google"
	ActionLoginFacebook     = "login_facebook"
	ActionOAuthCreated      = "oauth_account_created"
	ActionRefreshRotated    = "refresh_rotated"
	ActionRefreshReuse      = "refresh_reuse_detected"
	ActionLogout            = "logout"
	ActionLogoutAll         = "logout_all"
	ActionAdminRevoke       = "admin_revoke_session"
	ActionAdminUpdateUser   = "admin_update_user"
	ActionUpdateMe          = "update_me"
	ActionUpdateProfile     = "update_profile"
	ActionBootstrapRootUser = "bootstrap_root_admin"
)
