package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"genesis-iam/backend/internal/credential/domain"
	"genesis-iam/backend/internal/db"
)

type credentialStore struct {
	q db.DBTX
}

func (s *credentialStore) Create(ctx context.Context, c *domain.Credential) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO user_credentials (user_id, password_hash, password_updated_at, must_reset_password)
		VALUES ($1, $2, $3, $4)`,
		c.UserID, c.PasswordHash, c.PasswordUpdatedAt, c.MustReset,
	)
	return err
}

func (s *credentialStore) GetByUserID(ctx context.Context, userID string) (*domain.Credential, error) {
	var c domain.Credential
	err := s.q.QueryRowContext(ctx, `
		SELECT user_id, password_hash, password_updated_at, must_reset_password
		FROM user_credentials WHERE user_id = $1`, userID).
		Scan(&c.UserID, &c.PasswordHash, &c.PasswordUpdatedAt, &c.MustReset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *credentialStore) UpdateHash(ctx context.Context, userID, passwordHash string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE user_credentials
		SET password_hash = $2, password_updated_at = $3, must_reset_password = FALSE
		WHERE user_id = $1`,
		userID, passwordHash, at,
	)
	return err
}
