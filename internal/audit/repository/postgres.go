package repository

import (
	"context"
	"database/sql"

	"concord-access-core/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends the entry. The entry must have ID and CreatedAt set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Entry) error {
	actor := sql.NullString{String: e.ActorID, Valid: e.ActorID != ""}
	reason := sql.NullString{String: e.Reason, Valid: e.Reason != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, action, target_kind, target_id, before, after, reason, ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, actor, string(e.Action), e.TargetKind, e.TargetID,
		nullBytes(e.Before), nullBytes(e.After), reason, e.IP, e.CreatedAt)
	return err
}

// ListByActor returns entries for the given actor, newest first, paginated by
// limit and offset. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByActor(ctx context.Context, actorID string, limit, offset int32) ([]*domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_kind, target_id, before, after, reason, ip, created_at
		 FROM audit_log WHERE actor_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, actorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		var actor, reason sql.NullString
		var action string
		if err := rows.Scan(&e.ID, &actor, &action, &e.TargetKind, &e.TargetID,
			&e.Before, &e.After, &reason, &e.IP, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = actor.String
		e.Action = domain.ActionKind(action)
		e.Reason = reason.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
