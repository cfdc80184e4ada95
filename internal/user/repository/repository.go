package repository

import (
	"context"

	"concord-access-core/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// SoftDelete marks the user deleted without removing the row; idempotent.
	SoftDelete(ctx context.Context, id string) error
}
