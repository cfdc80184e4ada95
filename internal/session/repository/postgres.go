package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"concord-access-core/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, secret_hash, prev_secret_hash, device, ip_address,
	expires_at, revoked_at, last_used_at, created_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

// GetBySecretHash returns the session whose current secret hash matches, or nil.
func (r *PostgresRepository) GetBySecretHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE secret_hash = $1`, hash)
}

// GetByPrevSecretHash returns the session whose retired secret hash matches, or nil.
func (r *PostgresRepository) GetByPrevSecretHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE prev_secret_hash = $1`, hash)
}

// Create persists the session. Only hashes are written; callers must never
// pass raw secrets to this layer.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	prev := sql.NullString{String: s.PrevSecretHash, Valid: s.PrevSecretHash != ""}
	device := sql.NullString{String: s.Device, Valid: s.Device != ""}
	ip := sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, secret_hash, prev_secret_hash, device, ip_address,
		                       expires_at, revoked_at, last_used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.SecretHash, prev, device, ip,
		s.ExpiresAt, timeToNull(s.RevokedAt), timeToNull(s.LastUsedAt), s.CreatedAt)
	return err
}

// RotateSecret conditionally replaces the stored secret hash. The WHERE clause
// keys on the hash just read, so a lost race affects zero rows and reports
// rotated == false; the update either commits fully or not at all.
func (r *PostgresRepository) RotateSecret(ctx context.Context, id, oldHash, newHash string, usedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET prev_secret_hash = secret_hash, secret_hash = $3, last_used_at = $4
		 WHERE id = $1 AND secret_hash = $2 AND revoked_at IS NULL`,
		id, oldHash, newHash, usedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Touch advances last_used_at, never backwards, and leaves expires_at and the
// stored hash untouched. Revoked rows are skipped.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET last_used_at = GREATEST(COALESCE(last_used_at, 'epoch'::timestamptz), $2)
		 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	return err
}

// Revoke sets revoked_at once; repeat calls keep the original timestamp.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	return err
}

// RevokeAllByUser revokes every active session for the user except exceptID.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $3
		 WHERE user_id = $1 AND revoked_at IS NULL AND ($2 = '' OR id <> $2)`,
		userID, exceptID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteTerminated removes expired rows and revoked rows older than the
// retention window. Rows still active are never touched, so cleanup can run
// concurrently with live validations.
func (r *PostgresRepository) DeleteTerminated(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1 OR (revoked_at IS NOT NULL AND revoked_at <= $2)`,
		now, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.Session, error) {
	var s domain.Session
	var prev, device, ip sql.NullString
	var revokedAt, lastUsedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&s.ID, &s.UserID, &s.SecretHash, &prev, &device, &ip,
		&s.ExpiresAt, &revokedAt, &lastUsedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.PrevSecretHash = prev.String
	s.Device = device.String
	s.IPAddress = ip.String
	if revokedAt.Valid {
		s.RevokedAt = &revokedAt.Time
	}
	if lastUsedAt.Valid {
		s.LastUsedAt = &lastUsedAt.Time
	}
	return &s, nil
}

func timeToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
