package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"concord-access-core/backend/internal/permission"
	"concord-access-core/backend/internal/role/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a role repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the role for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	var role domain.Role
	var perms int64
	var deletedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, guild_id, name, permissions, position, deleted_at, created_at
		 FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.GuildID, &role.Name, &perms, &role.Position, &deletedAt, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	role.Permissions = permission.Bitmask(uint64(perms))
	if deletedAt.Valid {
		role.DeletedAt = &deletedAt.Time
	}
	return &role, nil
}

// GetPermissionsByIDs returns permission masks keyed by role id for the given
// ids, skipping soft-deleted roles. Unknown ids are simply absent.
func (r *PostgresRepository) GetPermissionsByIDs(ctx context.Context, ids []string) (map[string]permission.Bitmask, error) {
	out := make(map[string]permission.Bitmask, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, permissions FROM roles WHERE id = ANY($1) AND deleted_at IS NULL`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var perms int64
		if err := rows.Scan(&id, &perms); err != nil {
			return nil, err
		}
		out[id] = permission.Bitmask(uint64(perms))
	}
	return out, rows.Err()
}

// Create persists the role. The role must have ID and GuildID set.
func (r *PostgresRepository) Create(ctx context.Context, role *domain.Role) error {
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, guild_id, name, permissions, position, deleted_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		role.ID, role.GuildID, role.Name, int64(uint64(role.Permissions)), role.Position,
		timeToNull(role.DeletedAt), role.CreatedAt)
	return err
}

// UpdatePermissions replaces the role's permission mask. Reserved bits are
// stored as supplied so unknown bits round-trip unchanged.
func (r *PostgresRepository) UpdatePermissions(ctx context.Context, id string, mask permission.Bitmask) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE roles SET permissions = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, int64(uint64(mask)))
	return err
}

// SoftDelete marks the role deleted. Idempotent.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE roles SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now().UTC())
	return err
}

func timeToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
