// Package access resolves a principal's effective permission bitmask for a
// channel. Resolution is a pure function of the principal, the channel's
// overwrite rows, and the guild's role definitions; it never mutates state.
package access

import "concord-access-core/backend/internal/permission"

// Principal is the resolved identity of a request's caller within one guild:
// user id, assigned role ids (always including the guild's everyone role),
// the OR of those roles' permission masks, and the guild-owner flag. It is
// ephemeral and valid only for the resolution calls it is passed to.
type Principal struct {
	UserID  string
	GuildID string
	RoleIDs []string
	Base    permission.Bitmask
	IsOwner bool
}

// HasRole reports whether the principal carries the given role id.
func (p *Principal) HasRole(roleID string) bool {
	for _, id := range p.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}
