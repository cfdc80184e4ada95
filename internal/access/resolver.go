package access

import (
	"context"
	"errors"
	"fmt"

	membershipdomain "concord-access-core/backend/internal/membership/domain"
	overwritedomain "concord-access-core/backend/internal/overwrite/domain"
	"concord-access-core/backend/internal/permission"
	roledomain "concord-access-core/backend/internal/role/domain"
)

// Sentinel errors for access resolution.
var (
	// ErrNotAMember is returned when the user has no membership in the guild.
	ErrNotAMember = errors.New("user is not a member of the guild")
	// ErrMissingPermission is returned by Require when the resolved mask lacks
	// a required bit.
	ErrMissingPermission = errors.New("missing required permission")
)

// GuildRepo is the minimal guild repository needed by the resolver.
type GuildRepo interface {
	IsOwner(ctx context.Context, guildID, userID string) (bool, error)
}

// MembershipRepo is the minimal membership repository needed by the resolver.
type MembershipRepo interface {
	GetByUserAndGuild(ctx context.Context, userID, guildID string) (*membershipdomain.Membership, error)
}

// RoleRepo is the minimal role repository needed by the resolver.
type RoleRepo interface {
	GetPermissionsByIDs(ctx context.Context, ids []string) (map[string]permission.Bitmask, error)
}

// OverwriteRepo is the minimal overwrite repository needed by the resolver.
type OverwriteRepo interface {
	ListByChannel(ctx context.Context, channelID string) ([]*overwritedomain.Overwrite, error)
}

// Resolver computes effective channel permissions. It holds read-side
// repositories only and is safe for concurrent use.
type Resolver struct {
	guildRepo      GuildRepo
	membershipRepo MembershipRepo
	roleRepo       RoleRepo
	overwriteRepo  OverwriteRepo
}

// NewResolver returns a Resolver with the given dependencies.
func NewResolver(guildRepo GuildRepo, membershipRepo MembershipRepo, roleRepo RoleRepo, overwriteRepo OverwriteRepo) *Resolver {
	return &Resolver{
		guildRepo:      guildRepo,
		membershipRepo: membershipRepo,
		roleRepo:       roleRepo,
		overwriteRepo:  overwriteRepo,
	}
}

// ResolvePrincipal loads the user's standing in the guild: owner flag,
// assigned roles plus the implicit everyone role, and the OR of their masks.
// Returns ErrNotAMember if the user has no membership and is not the owner.
func (r *Resolver) ResolvePrincipal(ctx context.Context, userID, guildID string) (*Principal, error) {
	isOwner, err := r.guildRepo.IsOwner(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}
	m, err := r.membershipRepo.GetByUserAndGuild(ctx, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("resolve membership: %w", err)
	}
	if m == nil && !isOwner {
		return nil, ErrNotAMember
	}
	roleIDs := []string{roledomain.EveryoneRoleID(guildID)}
	if m != nil {
		roleIDs = append(roleIDs, m.RoleIDs...)
	}
	masks, err := r.roleRepo.GetPermissionsByIDs(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve role permissions: %w", err)
	}
	var base permission.Bitmask
	for _, mask := range masks {
		base |= mask
	}
	return &Principal{
		UserID:  userID,
		GuildID: guildID,
		RoleIDs: roleIDs,
		Base:    base,
		IsOwner: isOwner,
	}, nil
}

// Resolve returns the principal's effective permission mask for the channel.
// Precedence, in order: guild owner gets everything; the OR of role masks is
// the base; Administrator in the base bypasses all overwrites; merged role
// overwrites apply deny-then-allow; the member's own overwrite applies last.
func (r *Resolver) Resolve(ctx context.Context, p *Principal, channelID string) (permission.Bitmask, error) {
	if p.IsOwner {
		return permission.All(), nil
	}
	if p.Base.Has(permission.Administrator) {
		return permission.All(), nil
	}
	rows, err := r.overwriteRepo.ListByChannel(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("resolve overwrites: %w", err)
	}
	return combine(p, rows), nil
}

// Require returns nil when mask carries every bit in need, ErrMissingPermission
// otherwise. The enforcement decision stays with the caller; this only makes
// the missing-bit check uniform.
func Require(mask, need permission.Bitmask) error {
	if mask.Has(need) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingPermission, need.Remove(mask&need).String())
}

// combine applies channel overwrites to the principal's base mask. Role rows
// matching any of the principal's roles are merged first: deny bits are OR'd,
// allow bits are OR'd, and a bit present in both merged sets resolves to allow
// (a grant from any held role overrides another role's deny). The member's own
// row, if present, is applied last and wins for every bit it names. The result
// never contains bits outside the defined enumeration.
func combine(p *Principal, rows []*overwritedomain.Overwrite) permission.Bitmask {
	var roleAllow, roleDeny permission.Bitmask
	var member *overwritedomain.Overwrite
	for _, row := range rows {
		switch row.TargetKind {
		case overwritedomain.TargetRole:
			if p.HasRole(row.TargetID) {
				roleAllow |= row.Allow
				roleDeny |= row.Deny
			}
		case overwritedomain.TargetMember:
			if row.TargetID == p.UserID {
				member = row
			}
		}
	}
	perms := p.Base
	perms = perms.Remove(roleDeny).Add(roleAllow)
	if member != nil {
		perms = perms.Remove(member.Deny).Add(member.Allow)
	}
	return perms.Defined()
}
