package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"concord-access-core/backend/internal/overwrite/domain"
	"concord-access-core/backend/internal/permission"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an overwrite repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListByChannel returns every overwrite row for the channel.
func (r *PostgresRepository) ListByChannel(ctx context.Context, channelID string) ([]*domain.Overwrite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel_id, target_kind, target_id, allow, deny, updated_at
		 FROM channel_overwrites WHERE channel_id = $1`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Overwrite
	for rows.Next() {
		o, err := scanOverwrite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetByTarget returns the single overwrite for (channel, kind, target), or nil
// if none exists. It returns an error only for database failures.
func (r *PostgresRepository) GetByTarget(ctx context.Context, channelID string, kind domain.TargetKind, targetID string) (*domain.Overwrite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT channel_id, target_kind, target_id, allow, deny, updated_at
		 FROM channel_overwrites
		 WHERE channel_id = $1 AND target_kind = $2 AND target_id = $3`,
		channelID, string(kind), targetID)
	o, err := scanOverwrite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// Upsert inserts or replaces the overwrite for its (channel, kind, target).
// The allow/deny non-overlap invariant is rechecked here so no write path can
// bypass it; updated_at is set by this layer, not a database trigger.
func (r *PostgresRepository) Upsert(ctx context.Context, o *domain.Overwrite) error {
	if err := o.Validate(); err != nil {
		return err
	}
	o.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO channel_overwrites (channel_id, target_kind, target_id, allow, deny, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (channel_id, target_kind, target_id)
		 DO UPDATE SET allow = EXCLUDED.allow, deny = EXCLUDED.deny, updated_at = EXCLUDED.updated_at`,
		o.ChannelID, string(o.TargetKind), o.TargetID,
		int64(uint64(o.Allow)), int64(uint64(o.Deny)), o.UpdatedAt)
	return err
}

// Delete removes the overwrite for (channel, kind, target). Idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, channelID string, kind domain.TargetKind, targetID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM channel_overwrites
		 WHERE channel_id = $1 AND target_kind = $2 AND target_id = $3`,
		channelID, string(kind), targetID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverwrite(row rowScanner) (*domain.Overwrite, error) {
	var o domain.Overwrite
	var kind string
	var allow, deny int64
	if err := row.Scan(&o.ChannelID, &kind, &o.TargetID, &allow, &deny, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.TargetKind = domain.TargetKind(kind)
	o.Allow = permission.Bitmask(uint64(allow))
	o.Deny = permission.Bitmask(uint64(deny))
	return &o, nil
}
