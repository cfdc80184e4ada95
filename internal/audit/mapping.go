package audit

import "concord-access-core/backend/internal/audit/domain"

// legacyActionCodes maps the integer action codes used by the pre-migration
// schema to the current ActionKind enumeration. The table exists only to
// translate historical rows during the schema transition; new writes always
// carry an ActionKind. Codes absent here were never emitted.
var legacyActionCodes = map[int]domain.ActionKind{
	1:  domain.ActionSessionCreated,
	2:  domain.ActionSessionRotated,
	3:  domain.ActionSessionRevoked,
	4:  domain.ActionSessionsRevokedAll,
	5:  domain.ActionSessionReplayDetected,
	10: domain.ActionOverwriteSet,
	11: domain.ActionOverwriteDeleted,
	20: domain.ActionRoleCreated,
	21: domain.ActionRoleUpdated,
	22: domain.ActionRoleDeleted,
	23: domain.ActionMemberRoleAdded,
	24: domain.ActionMemberRoleRemoved,
	30: domain.ActionUserDeleted,
}

// FromLegacyCode returns the ActionKind for a historical integer action code.
// ok is false for codes outside the legacy table.
func FromLegacyCode(code int) (kind domain.ActionKind, ok bool) {
	kind, ok = legacyActionCodes[code]
	return kind, ok
}
