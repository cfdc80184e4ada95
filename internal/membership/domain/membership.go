package domain

import "time"

// Membership links a user to a guild and carries the member's assigned role
// ids. The guild's implicit everyone role is not stored here; resolution adds
// it unconditionally. Voice-state fields live with the media pipeline, not here.
type Membership struct {
	UserID   string
	GuildID  string
	Nick     string
	RoleIDs  []string
	JoinedAt time.Time
}
