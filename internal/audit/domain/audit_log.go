package domain

import "time"

// ActionKind is the closed enumeration of auditable actions. New kinds are
// appended here and nowhere else; free-form action strings are not accepted.
type ActionKind string

const (
	ActionSessionCreated        ActionKind = "session_created"
	ActionSessionRotated        ActionKind = "session_rotated"
	ActionSessionRevoked        ActionKind = "session_revoked"
	ActionSessionsRevokedAll    ActionKind = "sessions_revoked_all"
	ActionSessionReplayDetected ActionKind = "session_replay_detected"
	ActionOverwriteSet          ActionKind = "overwrite_set"
	ActionOverwriteDeleted      ActionKind = "overwrite_deleted"
	ActionRoleCreated           ActionKind = "role_created"
	ActionRoleUpdated           ActionKind = "role_updated"
	ActionRoleDeleted           ActionKind = "role_deleted"
	ActionMemberRoleAdded       ActionKind = "member_role_added"
	ActionMemberRoleRemoved     ActionKind = "member_role_removed"
	ActionUserDeleted           ActionKind = "user_deleted"
)

// Valid reports whether k is a member of the closed enumeration.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionSessionCreated, ActionSessionRotated, ActionSessionRevoked,
		ActionSessionsRevokedAll, ActionSessionReplayDetected,
		ActionOverwriteSet, ActionOverwriteDeleted,
		ActionRoleCreated, ActionRoleUpdated, ActionRoleDeleted,
		ActionMemberRoleAdded, ActionMemberRoleRemoved, ActionUserDeleted:
		return true
	}
	return false
}

// Entry is one audit event: who did what to which target, with a structured
// before/after diff. Entries are write-only from the core's perspective.
type Entry struct {
	ID         string
	ActorID    string // user id of the acting principal; empty for system actions
	Action     ActionKind
	TargetKind string // e.g. "session", "overwrite", "role", "user"
	TargetID   string
	Before     []byte // JSON snapshot prior to the change; nil for creations
	After      []byte // JSON snapshot after the change; nil for deletions
	Reason     string // optional operator-supplied reason
	IP         string
	CreatedAt  time.Time
}
