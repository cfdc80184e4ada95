package repository

import (
	"context"

	"concord-access-core/backend/internal/guild/domain"
)

// Repository defines persistence for guilds.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Guild, error)
	// IsOwner reports whether userID owns guildID. Missing guilds are not owned by anyone.
	IsOwner(ctx context.Context, guildID, userID string) (bool, error)
	Create(ctx context.Context, g *domain.Guild) error
}
