package httpapi

import (
	"time"

	auditdomain "genesis-iam/backend/internal/audit/domain"
	identitydomain "genesis-iam/backend/internal/identity/domain"
	profiledomain "genesis-iam/backend/internal/profile/domain"
	sessiondomain "genesis-iam/backend/internal/session/domain"
	sessionservice "genesis-iam/backend/internal/session/service"
	userdomain "genesis-iam/backend/internal/user/domain"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func newTokenResponse(pair *sessionservice.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	}
}

type userResponse struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Status     string     `json:"status"`
	Username   string     `json:"username,omitempty"`
	Email      string     `json:"email,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DisabledAt *time.Time `json:"disabled_at,omitempty"`
}

func newUserResponse(u *userdomain.User, ident *identitydomain.Identity) userResponse {
	resp := userResponse{
		ID:         u.ID,
		Role:       string(u.Role),
		Status:     string(u.Status),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
		DisabledAt: u.DisabledAt,
	}
	if ident != nil {
		resp.Username = ident.Username
		resp.Email = ident.Email
	}
	return resp
}

type profileResponse struct {
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	NickName   string    `json:"nick_name,omitempty"`
	PictureURL string    `json:"picture_url,omitempty"`
	Locale     string    `json:"locale,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newProfileResponse(p *profiledomain.Profile) profileResponse {
	return profileResponse{
		GivenName:  p.GivenName,
		FamilyName: p.FamilyName,
		NickName:   p.NickName,
		PictureURL: p.PictureURL,
		Locale:     p.Locale,
		UpdatedAt:  p.UpdatedAt,
	}
}

type sessionResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	IPAddress     string     `json:"ip_address,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

func newSessionResponse(s *sessiondomain.Session) sessionResponse {
	return sessionResponse{
		ID:            s.ID,
		UserID:        s.UserID,
		IPAddress:     s.IPAddress,
		UserAgent:     s.UserAgent,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		RevokedAt:     s.RevokedAt,
		RevokedReason: s.RevokedReason,
	}
}

type auditLogResponse struct {
	ID          string            `json:"id"`
	ActorUserID string            `json:"actor_user_id"`
	Action      string            `json:"action"`
	TargetType  string            `json:"target_type"`
	TargetID    string            `json:"target_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newAuditLogResponse(e *auditdomain.Entry) auditLogResponse {
	return auditLogResponse{
		ID:          e.ID,
		ActorUserID: e.ActorUserID,
		Action:      e.Action,
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
}
