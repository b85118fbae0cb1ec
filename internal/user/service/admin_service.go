// Package service implements the admin surface over users and the root
// admin bootstrap that runs at startup.
package service

import (
	"context"
	"errors"
	"time"

	"genesis-iam/backend/internal/audit"
	auditdomain "genesis-iam/backend/internal/audit/domain"
	credentialdomain "genesis-iam/backend/internal/credential/domain"
	identitydomain "genesis-iam/backend/internal/identity/domain"
	"genesis-iam/backend/internal/ids"
	profiledomain "genesis-iam/backend/internal/profile/domain"
	"genesis-iam/backend/internal/security"
	sessiondomain "genesis-iam/backend/internal/session/domain"
	"genesis-iam/backend/internal/store"
	"genesis-iam/backend/internal/user/domain"
)

var (
	// ErrNotFound means the target user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidArgument wraps rejected update values.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden guards the root admin: its role and status cannot be
	// changed, and no other user can be promoted to it.
	ErrForbidden = errors.New("operation not permitted on this role")
)

// AdminService reads and mutates user accounts on behalf of administrators.
type AdminService struct {
	store    store.Store
	recorder *audit.Recorder
	now      func() time.Time
}

// NewAdminService wires the service to its store and audit recorder.
func NewAdminService(st store.Store, recorder *audit.Recorder) *AdminService {
	return &AdminService{store: st, recorder: recorder, now: time.Now}
}

// ListUsers returns users newest first.
func (s *AdminService) ListUsers(ctx context.Context, limit, offset int32) ([]*domain.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Users().List(ctx, limit, offset)
}

// GetUser returns one user or ErrNotFound.
func (s *AdminService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// UpdateUser applies an admin's role/status change. Disabling a user revokes
// all of their sessions in the same transaction. There is exactly one root
// admin: the role can be neither granted nor taken away here.
func (s *AdminService) UpdateUser(ctx context.Context, actorUserID, targetID string, upd domain.AdminUpdate) (*domain.User, error) {
	if upd.Role != nil && !domain.ValidRole(*upd.Role) {
		return nil, ErrInvalidArgument
	}
	if upd.Role != nil && *upd.Role == domain.RoleRootAdmin {
		return nil, ErrForbidden
	}
	if upd.Status != nil && !domain.ValidStatus(*upd.Status) {
		return nil, ErrInvalidArgument
	}

	now := s.now().UTC()
	var updated *domain.User
	err := s.recorder.InTx(ctx, s.store, func(st store.Store, rec *audit.TxRecorder) error {
		user, err := st.Users().GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}
		if user.Role == domain.RoleRootAdmin {
			return ErrForbidden
		}
		wasActive := user.IsActive()
		if !user.Apply(upd, now) {
			updated = user
			return nil
		}
		if err := st.Users().Update(ctx, user); err != nil {
			return err
		}
		if wasActive && !user.IsActive() {
			if _, err := st.Sessions().RevokeAllForUser(ctx, user.ID, sessiondomain.ReasonUserDisabled, now); err != nil {
				return err
			}
		}
		updated = user
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: actorUserID,
			Action:      auditdomain.ActionAdminUpdateUser,
			TargetType:  "user",
			TargetID:    user.ID,
			Metadata:    updateMetadata(upd),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListAuditLogs returns audit entries newest first, for the admin surface.
func (s *AdminService) ListAuditLogs(ctx context.Context, limit, offset int32) ([]*auditdomain.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Audit().List(ctx, limit, offset)
}

func updateMetadata(upd domain.AdminUpdate) map[string]string {
	md := map[string]string{}
	if upd.Role != nil {
		md["role"] = string(*upd.Role)
	}
	if upd.Status != nil {
		md["status"] = string(*upd.Status)
	}
	return md
}

// EnsureRootAdmin creates the root admin account on first start. A no-op
// when a root admin already exists or when the credentials are unset.
func EnsureRootAdmin(ctx context.Context, st store.Store, hasher *security.Hasher, recorder *audit.Recorder, username, email, password string) (created bool, err error) {
	if email == "" || password == "" {
		return false, nil
	}
	if username == "" {
		username = "root"
	}
	n, err := st.Users().CountByRole(ctx, domain.RoleRootAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:        ids.New(),
		Role:      domain.RoleRootAdmin,
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = recorder.InTx(ctx, st, func(tx store.Store, rec *audit.TxRecorder) error {
		// Re-check inside the transaction; two replicas may race at boot.
		n, err := tx.Users().CountByRole(ctx, domain.RoleRootAdmin)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		ident := &identitydomain.Identity{
			ID:             ids.New(),
			UserID:         user.ID,
			Provider:       identitydomain.ProviderNative,
			ProviderUserID: username,
			Email:          email,
			Username:       username,
			EmailVerified:  true,
			CreatedAt:      now,
		}
		if err := tx.Identities().Create(ctx, ident); err != nil {
			return err
		}
		cred := &credentialdomain.Credential{
			UserID:            user.ID,
			PasswordHash:      hash,
			PasswordUpdatedAt: now,
		}
		if err := tx.Credentials().Create(ctx, cred); err != nil {
			return err
		}
		if err := tx.Profiles().Create(ctx, &profiledomain.Profile{UserID: user.ID, UpdatedAt: now}); err != nil {
			return err
		}
		created = true
		return rec.Record(ctx, tx, audit.Event{
			ActorUserID: user.ID,
			Action:      auditdomain.ActionBootstrapRootUser,
			TargetType:  "user",
			TargetID:    user.ID,
		})
	})
	if err != nil {
		return false, err
	}
	return created, nil
}
