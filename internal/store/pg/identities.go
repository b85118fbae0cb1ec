package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"genesis-iam/backend/internal/db"
	"genesis-iam/backend/internal/identity/domain"
)

type identityStore struct {
	q db.DBTX
}

const identityColumns = `id, user_id, provider, provider_user_id, email, username, email_verified, created_at, last_login_at`

func (s *identityStore) Create(ctx context.Context, i *domain.Identity) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO user_identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		i.ID, i.UserID, i.Provider, i.ProviderUserID,
		nullString(i.Email), nullString(i.Username), i.EmailVerified,
		i.CreatedAt, nullTime(i.LastLoginAt),
	)
	return err
}

func (s *identityStore) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM user_identities WHERE id = $1`, id)
	return scanIdentity(row)
}

func (s *identityStore) GetByProviderSubject(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.Identity, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM user_identities
		WHERE provider = $1 AND provider_user_id = $2`, provider, providerUserID)
	return scanIdentity(row)
}

func (s *identityStore) GetNativeByIdentifier(ctx context.Context, identifier string) (*domain.Identity, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM user_identities
		WHERE provider = $1 AND (username = $2 OR email = $2)
		LIMIT 1`, domain.ProviderNative, identifier)
	return scanIdentity(row)
}

func (s *identityStore) GetByUserAndProvider(ctx context.Context, userID string, provider domain.Provider) (*domain.Identity, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM user_identities
		WHERE user_id = $1 AND provider = $2`, userID, provider)
	return scanIdentity(row)
}

func (s *identityStore) UpdateContact(ctx context.Context, id, username, email string) error {
	// For native identities provider_user_id mirrors the username.
	_, err := s.q.ExecContext(ctx, `
		UPDATE user_identities
		SET username = $2, email = $3,
		    provider_user_id = CASE WHEN provider = 'native' THEN $2 ELSE provider_user_id END
		WHERE id = $1`,
		id, nullString(username), nullString(email),
	)
	return err
}

func (s *identityStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE user_identities SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanIdentity(row rowScanner) (*domain.Identity, error) {
	var (
		i         domain.Identity
		email     sql.NullString
		username  sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&i.ID, &i.UserID, &i.Provider, &i.ProviderUserID,
		&email, &username, &i.EmailVerified, &i.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Email = email.String
	i.Username = username.String
	i.LastLoginAt = timePtr(lastLogin)
	return &i, nil
}
