// Package permission defines the fixed 64-bit permission enumeration shared by
// roles and channel overwrites. Bit positions are versioned and append-only:
// existing bits never move, and bits outside the defined set are reserved-zero.
package permission

import (
	"sort"
	"strings"
)

// Bitmask is an unsigned 64-bit permission set. The zero value grants nothing.
type Bitmask uint64

// Permission bits, version 1. Positions are wire-stable; append new bits at the
// end and never reorder.
const (
	ViewChannels Bitmask = 1 << iota
	ManageChannels
	ManageGuild
	CreateInvite
	ChangeNickname
	ManageNicknames
	KickMembers
	BanMembers
	ManageRoles
	ManageWebhooks
	ViewAuditLog
	SendMessages
	EmbedLinks
	AttachFiles
	AddReactions
	MentionEveryone
	ManageMessages
	ReadMessageHistory
	Connect
	Speak
	Video
	MuteMembers
	DeafenMembers
	MoveMembers
	// Administrator bypasses all channel-level overwrites and grants the full
	// defined set. Must stay the last defined bit.
	Administrator
)

var names = map[Bitmask]string{
	ViewChannels:       "VIEW_CHANNELS",
	ManageChannels:     "MANAGE_CHANNELS",
	ManageGuild:        "MANAGE_GUILD",
	CreateInvite:       "CREATE_INVITE",
	ChangeNickname:     "CHANGE_NICKNAME",
	ManageNicknames:    "MANAGE_NICKNAMES",
	KickMembers:        "KICK_MEMBERS",
	BanMembers:         "BAN_MEMBERS",
	ManageRoles:        "MANAGE_ROLES",
	ManageWebhooks:     "MANAGE_WEBHOOKS",
	ViewAuditLog:       "VIEW_AUDIT_LOG",
	SendMessages:       "SEND_MESSAGES",
	EmbedLinks:         "EMBED_LINKS",
	AttachFiles:        "ATTACH_FILES",
	AddReactions:       "ADD_REACTIONS",
	MentionEveryone:    "MENTION_EVERYONE",
	ManageMessages:     "MANAGE_MESSAGES",
	ReadMessageHistory: "READ_MESSAGE_HISTORY",
	Connect:            "CONNECT",
	Speak:              "SPEAK",
	Video:              "VIDEO",
	MuteMembers:        "MUTE_MEMBERS",
	DeafenMembers:      "DEAFEN_MEMBERS",
	MoveMembers:        "MOVE_MEMBERS",
	Administrator:      "ADMINISTRATOR",
}

// all is the OR of every defined bit. Bits above Administrator are reserved.
const all = Administrator<<1 - 1

// All returns the full defined permission set (every known bit set, reserved
// bits zero). This is what owners and administrators resolve to.
func All() Bitmask { return all }

// Has reports whether every bit in p is set in m.
func (m Bitmask) Has(p Bitmask) bool { return m&p == p }

// Add returns m with the bits in p set.
func (m Bitmask) Add(p Bitmask) Bitmask { return m | p }

// Remove returns m with the bits in p cleared.
func (m Bitmask) Remove(p Bitmask) Bitmask { return m &^ p }

// Defined returns m restricted to the defined enumeration; reserved bits are
// dropped. Masks read from storage pass through unchanged (reserved bits
// round-trip at the persistence layer), but resolution output is always Defined.
func (m Bitmask) Defined() Bitmask { return m & all }

// Name returns the canonical name for a single defined bit, or "" if p is not
// exactly one defined bit.
func Name(p Bitmask) string { return names[p] }

// Names returns the canonical names of the defined bits set in m, sorted.
// Reserved bits are ignored. Useful for audit diffs and log output.
func (m Bitmask) Names() []string {
	out := make([]string, 0, len(names))
	for bit, name := range names {
		if m&bit != 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// String renders m as a comma-separated name list, or "0" for the empty mask.
func (m Bitmask) String() string {
	if m.Defined() == 0 {
		return "0"
	}
	return strings.Join(m.Names(), ",")
}
