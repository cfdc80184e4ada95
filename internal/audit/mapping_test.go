package audit

import (
	"testing"

	"concord-access-core/backend/internal/audit/domain"
)

func TestFromLegacyCode(t *testing.T) {
	tests := []struct {
		code   int
		want   domain.ActionKind
		wantOK bool
	}{
		{1, domain.ActionSessionCreated, true},
		{5, domain.ActionSessionReplayDetected, true},
		{10, domain.ActionOverwriteSet, true},
		{24, domain.ActionMemberRoleRemoved, true},
		{30, domain.ActionUserDeleted, true},
		{0, "", false},
		{6, "", false},
		{99, "", false},
	}
	for _, tt := range tests {
		got, ok := FromLegacyCode(tt.code)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("FromLegacyCode(%d) = (%q, %v), want (%q, %v)", tt.code, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLegacyCodesMapToValidKinds(t *testing.T) {
	for code, kind := range legacyActionCodes {
		if !kind.Valid() {
			t.Errorf("legacy code %d maps to invalid kind %q", code, kind)
		}
	}
}
