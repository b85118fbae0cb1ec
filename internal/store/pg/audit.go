package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"genesis-iam/backend/internal/audit/domain"
	"genesis-iam/backend/internal/db"
)

type auditStore struct {
	q db.DBTX
}

// Append inserts one immutable entry. There is deliberately no update or
// delete statement in this file.
func (s *auditStore) Append(ctx context.Context, e *domain.Entry) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, target_type, target_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ActorUserID, e.Action, e.TargetType, nullString(e.TargetID), payload, e.CreatedAt,
	)
	return err
}

func (s *auditStore) List(ctx context.Context, limit, offset int32) ([]*domain.Entry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, actor_user_id, action, target_type, target_id, metadata, created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var (
			e        domain.Entry
			targetID sql.NullString
			payload  []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.TargetType, &targetID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TargetID = targetID.String
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
