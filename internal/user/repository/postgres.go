package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"concord-access-core/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, status, deleted_at, created_at, updated_at
		 FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByUsername returns the user for username, or nil if not found.
// Soft-deleted users are not returned.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, status, deleted_at, created_at, updated_at
		 FROM users WHERE username = $1 AND deleted_at IS NULL`, username)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; timestamps are written
// here rather than relying on database defaults.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, status, deleted_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, string(u.Status), timeToNull(u.DeletedAt), u.CreatedAt, u.UpdatedAt)
	return err
}

// SoftDelete marks the user deleted. Idempotent: a second call leaves the
// original deleted_at in place.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = $2, updated_at = $2
		 WHERE id = $1 AND deleted_at IS NULL`, id, now)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var status string
	var deletedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &status, &deletedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Status = domain.UserStatus(status)
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

func timeToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
