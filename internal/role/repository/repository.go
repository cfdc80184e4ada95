package repository

import (
	"context"

	"concord-access-core/backend/internal/permission"
	"concord-access-core/backend/internal/role/domain"
)

// Repository defines persistence for roles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	// GetPermissionsByIDs returns the permission masks of the given roles,
	// keyed by role id. Soft-deleted and unknown ids are absent from the result.
	GetPermissionsByIDs(ctx context.Context, ids []string) (map[string]permission.Bitmask, error)
	Create(ctx context.Context, r *domain.Role) error
	// UpdatePermissions replaces the role's permission mask.
	UpdatePermissions(ctx context.Context, id string, mask permission.Bitmask) error
	// SoftDelete marks the role deleted; idempotent.
	SoftDelete(ctx context.Context, id string) error
}
