package domain

import (
	"time"

	"concord-access-core/backend/internal/permission"
)

// Role belongs to exactly one guild and carries a permission bitmask.
// Position orders roles for display only; it never affects resolution.
//
// Every guild has an implicit everyone role whose id equals the guild id; it
// is the base grant for members holding no explicit roles.
type Role struct {
	ID          string
	GuildID     string
	Name        string
	Permissions permission.Bitmask
	Position    int
	DeletedAt   *time.Time // nil unless soft-deleted
	CreatedAt   time.Time
}

// EveryoneRoleID returns the id of the guild's implicit everyone role.
func EveryoneRoleID(guildID string) string { return guildID }

// Deleted reports whether the role is soft-deleted. Deleted roles contribute
// nothing to resolution.
func (r *Role) Deleted() bool { return r != nil && r.DeletedAt != nil }
