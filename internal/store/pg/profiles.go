package pg

import (
	"context"
	"database/sql"
	"errors"

	"genesis-iam/backend/internal/db"
	"genesis-iam/backend/internal/profile/domain"
)

type profileStore struct {
	q db.DBTX
}

func (s *profileStore) Create(ctx context.Context, p *domain.Profile) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO profiles (user_id, given_name, family_name, nick_name, picture_url, locale, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.UserID, p.GivenName, p.FamilyName,
		nullString(p.NickName), nullString(p.PictureURL), nullString(p.Locale),
		p.UpdatedAt,
	)
	return err
}

func (s *profileStore) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p          domain.Profile
		nickName   sql.NullString
		pictureURL sql.NullString
		locale     sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT user_id, given_name, family_name, nick_name, picture_url, locale, updated_at
		FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.GivenName, &p.FamilyName, &nickName, &pictureURL, &locale, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.NickName = nickName.String
	p.PictureURL = pictureURL.String
	p.Locale = locale.String
	return &p, nil
}

func (s *profileStore) Update(ctx context.Context, p *domain.Profile) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE profiles
		SET given_name = $2, family_name = $3, nick_name = $4, picture_url = $5, locale = $6, updated_at = $7
		WHERE user_id = $1`,
		p.UserID, p.GivenName, p.FamilyName,
		nullString(p.NickName), nullString(p.PictureURL), nullString(p.Locale),
		p.UpdatedAt,
	)
	return err
}
