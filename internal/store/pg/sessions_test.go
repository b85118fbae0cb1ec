package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"genesis-iam/backend/internal/session/domain"
	"genesis-iam/backend/internal/store"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		conn.Close()
	})
	return New(conn), mock
}

func TestRotateFingerprintCAS(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	update := regexp.QuoteMeta(`UPDATE sessions`)

	// One row matched: the presented fingerprint was current.
	mock.ExpectExec(update).
		WithArgs("sess-1", "old-fp", "new-fp", "new-jti", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := st.Sessions().RotateFingerprint(ctx, "sess-1", "old-fp", "new-fp", "new-jti", clientCtx())
	if err != nil || !ok {
		t.Fatalf("RotateFingerprint = (%v, %v), want (true, nil)", ok, err)
	}

	// Zero rows matched: the fingerprint was stale (replay) or the session
	// was revoked underneath us.
	mock.ExpectExec(update).
		WithArgs("sess-1", "old-fp", "new-fp-2", "new-jti-2", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = st.Sessions().RotateFingerprint(ctx, "sess-1", "old-fp", "new-fp-2", "new-jti-2", clientCtx())
	if err != nil || ok {
		t.Fatalf("stale RotateFingerprint = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestSessionGetByIDMissing(t *testing.T) {
	st, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sess, err := st.Sessions().GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if sess != nil {
		t.Errorf("GetByID(missing) = %+v, want nil", sess)
	}
}

func TestRevokeAlreadyRevoked(t *testing.T) {
	st, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET revoked_at`)).
		WithArgs("sess-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := st.Sessions().Revoke(context.Background(), "sess-1", "logout", time.Now().UTC())
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if changed {
		t.Error("Revoke on revoked session reported a change")
	}
}

func TestInTxCommitsAndRollsBack(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET revoked_at`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.InTx(ctx, func(tx store.Store) error {
		_, err := tx.Sessions().Revoke(ctx, "sess-1", "logout", time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	// An error from the function rolls the transaction back.
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	if err := st.InTx(ctx, func(tx store.Store) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("InTx err = %v, want boom", err)
	}
}

func clientCtx() domain.ClientContext {
	return domain.ClientContext{IPAddress: "10.0.0.1", UserAgent: "go-test"}
}
