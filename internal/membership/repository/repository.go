package repository

import (
	"context"

	"concord-access-core/backend/internal/membership/domain"
)

// Repository defines persistence for guild memberships.
type Repository interface {
	// GetByUserAndGuild returns the membership with its role ids, or nil if the
	// user is not a member.
	GetByUserAndGuild(ctx context.Context, userID, guildID string) (*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
	AddRole(ctx context.Context, userID, guildID, roleID string) error
	RemoveRole(ctx context.Context, userID, guildID, roleID string) error
}
