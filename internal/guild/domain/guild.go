package domain

import "time"

// Guild is a server: the top-level container for channels, roles, and members.
// OwnerID identifies the user who is always fully authorized within it.
type Guild struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}
