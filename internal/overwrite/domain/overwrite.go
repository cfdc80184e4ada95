package domain

import (
	"errors"
	"time"

	"concord-access-core/backend/internal/permission"
)

// ErrOverlappingBits is returned when an overwrite would set the same bit in
// both allow and deny. Enforced at write time; stored rows never violate it.
var ErrOverlappingBits = errors.New("overwrite allow and deny bits overlap")

// TargetKind says what an overwrite applies to: a role or an individual member.
type TargetKind string

const (
	TargetRole   TargetKind = "role"
	TargetMember TargetKind = "member"
)

// Overwrite is a channel-scoped exception to base role permissions. At most
// one row exists per (channel, target kind, target id).
type Overwrite struct {
	ChannelID  string
	TargetKind TargetKind
	TargetID   string
	Allow      permission.Bitmask
	Deny       permission.Bitmask
	UpdatedAt  time.Time
}

// Validate checks the single-row invariant allow & deny == 0 and that the
// target kind is known. Called before every insert or update.
func (o *Overwrite) Validate() error {
	if o.TargetKind != TargetRole && o.TargetKind != TargetMember {
		return errors.New("overwrite target kind must be role or member")
	}
	if o.TargetID == "" {
		return errors.New("overwrite target id is required")
	}
	if o.Allow&o.Deny != 0 {
		return ErrOverlappingBits
	}
	return nil
}
