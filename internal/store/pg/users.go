package pg

import (
	"context"
	"database/sql"
	"errors"

	"genesis-iam/backend/internal/db"
	"genesis-iam/backend/internal/user/domain"
)

type userStore struct {
	q db.DBTX
}

func (s *userStore) Create(ctx context.Context, u *domain.User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, role, status, created_at, updated_at, disabled_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Role, u.Status, u.CreatedAt, u.UpdatedAt, nullTime(u.DisabledAt),
	)
	return err
}

func (s *userStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, role, status, created_at, updated_at, disabled_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *userStore) List(ctx context.Context, limit, offset int32) ([]*domain.User, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, role, status, created_at, updated_at, disabled_at
		FROM users ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *userStore) Update(ctx context.Context, u *domain.User) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE users SET role = $2, status = $3, updated_at = $4, disabled_at = $5
		WHERE id = $1`,
		u.ID, u.Role, u.Status, u.UpdatedAt, nullTime(u.DisabledAt),
	)
	return err
}

func (s *userStore) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE role = $1`, role).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u        domain.User
		disabled sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt, &disabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.DisabledAt = timePtr(disabled)
	return &u, nil
}
