// Package pg implements store.Store on Postgres with hand-written SQL.
package pg

import (
	"context"
	"database/sql"
	"time"

	"genesis-iam/backend/internal/db"
	"genesis-iam/backend/internal/store"
)

// Store implements store.Store. A Store created by New runs each call on the
// pool; InTx hands fn a Store bound to one transaction.
type Store struct {
	conn *sql.DB // nil for tx-bound stores
	q    db.DBTX
}

var _ store.Store = (*Store)(nil)

// New returns a Store backed by the given connection pool.
func New(conn *sql.DB) *Store {
	return &Store{conn: conn, q: conn}
}

// InTx runs fn against a transaction-bound Store. Nested calls reuse the
// surrounding transaction.
func (s *Store) InTx(ctx context.Context, fn func(store.Store) error) error {
	if s.conn == nil {
		return fn(s)
	}
	return db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		return fn(&Store{q: tx})
	})
}

func (s *Store) Users() store.UserStore             { return &userStore{q: s.q} }
func (s *Store) Identities() store.IdentityStore    { return &identityStore{q: s.q} }
func (s *Store) Credentials() store.CredentialStore { return &credentialStore{q: s.q} }
func (s *Store) Profiles() store.ProfileStore       { return &profileStore{q: s.q} }
func (s *Store) Sessions() store.SessionStore       { return &sessionStore{q: s.q} }
func (s *Store) Audit() store.AuditStore            { return &auditStore{q: s.q} }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
