package repository

import (
	"context"
	"time"

	"concord-access-core/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Implementations must make
// RotateSecret a single conditional write: no partial states are possible and
// losers of a rotation race observe rotated == false.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetBySecretHash returns the session whose current secret hash matches, or nil.
	GetBySecretHash(ctx context.Context, hash string) (*domain.Session, error)
	// GetByPrevSecretHash returns the session whose retired secret hash matches, or nil.
	GetByPrevSecretHash(ctx context.Context, hash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// RotateSecret atomically replaces oldHash with newHash, retires oldHash
	// into prev_secret_hash, and advances last_used_at. rotated is false when
	// the stored hash no longer matches oldHash (a concurrent rotation won).
	RotateSecret(ctx context.Context, id, oldHash, newHash string, usedAt time.Time) (rotated bool, err error)
	// Touch advances last_used_at only, and never backwards. No-op for
	// revoked sessions; expiry is the caller's check.
	Touch(ctx context.Context, id string, at time.Time) error
	// Revoke sets revoked_at; idempotent (a second call keeps the first timestamp).
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeAllByUser revokes every active session for the user except
	// exceptID (pass "" to revoke all). Returns the number revoked.
	RevokeAllByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error)
	// DeleteTerminated removes rows that are expired, or revoked longer ago
	// than the retention window. Returns the number deleted.
	DeleteTerminated(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}
