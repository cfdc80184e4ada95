package domain

import (
	"errors"
	"time"
)

// User is the core user entity. IDs are UUIDv7 so they sort by creation time.
type User struct {
	ID        string
	Username  string
	Status    UserStatus
	DeletedAt *time.Time // nil unless soft-deleted
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Active reports whether the user may authenticate and appear in permission
// resolution: status active and not soft-deleted.
func (u *User) Active() bool {
	return u != nil && u.Status == UserStatusActive && u.DeletedAt == nil
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
