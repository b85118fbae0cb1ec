// Package service exposes read and merge-update over the caller's profile.
package service

import (
	"context"
	"errors"
	"time"

	"genesis-iam/backend/internal/audit"
	auditdomain "genesis-iam/backend/internal/audit/domain"
	"genesis-iam/backend/internal/profile/domain"
	"genesis-iam/backend/internal/store"
)

// ErrNotFound means no profile row exists for the user.
var ErrNotFound = errors.New("profile not found")

// Service owns profile reads and writes.
type Service struct {
	store    store.Store
	recorder *audit.Recorder
	now      func() time.Time
}

// NewService wires the service to its store and audit recorder.
func NewService(st store.Store, recorder *audit.Recorder) *Service {
	return &Service{store: st, recorder: recorder, now: time.Now}
}

// Get returns the user's profile.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	prof, err := s.store.Profiles().GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, ErrNotFound
	}
	return prof, nil
}

// Update merges the provided fields onto the profile. Nil fields stay as
// they are. A no-change update skips the write and the audit entry.
func (s *Service) Update(ctx context.Context, userID string, upd domain.Update) (*domain.Profile, error) {
	now := s.now().UTC()
	var updated *domain.Profile
	err := s.recorder.InTx(ctx, s.store, func(st store.Store, rec *audit.TxRecorder) error {
		prof, err := st.Profiles().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if prof == nil {
			return ErrNotFound
		}
		if !prof.Apply(upd, now) {
			updated = prof
			return nil
		}
		if err := st.Profiles().Update(ctx, prof); err != nil {
			return err
		}
		updated = prof
		return rec.Record(ctx, st, audit.Event{
			ActorUserID: userID,
			Action:      auditdomain.ActionUpdateProfile,
			TargetType:  "profile",
			TargetID:    userID,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
