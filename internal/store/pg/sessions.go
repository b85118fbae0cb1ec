package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"genesis-iam/backend/internal/db"
	"genesis-iam/backend/internal/session/domain"
)

type sessionStore struct {
	q db.DBTX
}

const sessionColumns = `id, user_id, identity_id, refresh_token_fingerprint, jti,
	ip_address, user_agent, created_at, expires_at, revoked_at, revoked_reason`

func (s *sessionStore) Create(ctx context.Context, sess *domain.Session) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sess.ID, sess.UserID, sess.IdentityID, sess.RefreshFingerprint, sess.JTI,
		nullString(sess.IPAddress), nullString(sess.UserAgent),
		sess.CreatedAt, sess.ExpiresAt, nullTime(sess.RevokedAt), nullString(sess.RevokedReason),
	)
	return err
}

func (s *sessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (s *sessionStore) List(ctx context.Context, limit, offset int32) ([]*domain.Session, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RotateFingerprint is the compare-and-swap at the heart of replay detection:
// the UPDATE is guarded by the current fingerprint and by the session being
// unrevoked, so of two concurrent rotations with the same stale token exactly
// one matches a row.
func (s *sessionStore) RotateFingerprint(ctx context.Context, sessionID, currentFingerprint, newFingerprint, newJTI string, client domain.ClientContext) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token_fingerprint = $3, jti = $4, ip_address = $5, user_agent = $6
		WHERE id = $1 AND refresh_token_fingerprint = $2 AND revoked_at IS NULL`,
		sessionID, currentFingerprint, newFingerprint, newJTI,
		nullString(client.IPAddress), nullString(client.UserAgent),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sessionStore) Revoke(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2, revoked_reason = $3
		WHERE id = $1 AND revoked_at IS NULL`,
		id, at, nullString(reason),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sessionStore) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, at, nullString(reason),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sessionStore) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at < $1 OR revoked_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess      domain.Session
		ipAddress sql.NullString
		userAgent sql.NullString
		revokedAt sql.NullTime
		reason    sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.IdentityID, &sess.RefreshFingerprint, &sess.JTI,
		&ipAddress, &userAgent, &sess.CreatedAt, &sess.ExpiresAt, &revokedAt, &reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sess.IPAddress = ipAddress.String
	sess.UserAgent = userAgent.String
	sess.RevokedAt = timePtr(revokedAt)
	sess.RevokedReason = reason.String
	return &sess, nil
}
