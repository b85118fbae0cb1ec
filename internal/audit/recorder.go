// Package audit records security-relevant events to the append-only audit
// log, in the same transaction as the state change they describe.
package audit

import (
	"context"
	"time"

	"genesis-iam/backend/internal/audit/domain"
	"genesis-iam/backend/internal/ids"
	"genesis-iam/backend/internal/store"
)

// Event is one security-relevant action to record.
type Event struct {
	ActorUserID string
	Action      string
	TargetType  string
	TargetID    string
	Metadata    map[string]string
}

// Recorder appends audit entries. Entries are written through the tx-bound
// store handed to InTx, so they commit or roll back together with the primary
// change. An optional stream mirrors committed events best-effort; the
// Postgres row stays canonical.
type Recorder struct {
	stream Stream
	now    func() time.Time
}

// NewRecorder returns a Recorder. stream may be nil.
func NewRecorder(stream Stream) *Recorder {
	return &Recorder{stream: stream, now: time.Now}
}

// InTx runs fn inside st.InTx. Entries recorded through rec are appended with
// the tx-bound store; the stream mirror fires only after the transaction
// commits, so a rolled-back operation never publishes its events.
func (r *Recorder) InTx(ctx context.Context, st store.Store, fn func(st store.Store, rec *TxRecorder) error) error {
	tx := &TxRecorder{r: r}
	if err := st.InTx(ctx, func(txSt store.Store) error {
		return fn(txSt, tx)
	}); err != nil {
		return err
	}
	for _, entry := range tx.entries {
		emitAsync(r.stream, entry)
	}
	return nil
}

// TxRecorder records entries for one transaction.
type TxRecorder struct {
	r       *Recorder
	entries []*domain.Entry
}

// Record appends one entry via st and holds it for the post-commit stream
// mirror. Returns the store error unchanged so the surrounding transaction
// aborts when the trail cannot be written.
func (t *TxRecorder) Record(ctx context.Context, st store.Store, ev Event) error {
	entry := &domain.Entry{
		ID:          ids.NewSortable(),
		ActorUserID: ev.ActorUserID,
		Action:      ev.Action,
		TargetType:  ev.TargetType,
		TargetID:    ev.TargetID,
		Metadata:    ev.Metadata,
		CreatedAt:   t.r.now().UTC(),
	}
	if err := st.Audit().Append(ctx, entry); err != nil {
		return err
	}
	t.entries = append(t.entries, entry)
	return nil
}
