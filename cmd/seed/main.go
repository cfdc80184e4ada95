// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev owner user already exists.
package main

import (
	"context"
	"log"
	"os"

	"concord-access-core/backend/internal/config"
	"concord-access-core/backend/internal/db"
	guilddomain "concord-access-core/backend/internal/guild/domain"
	guildrepo "concord-access-core/backend/internal/guild/repository"
	membershipdomain "concord-access-core/backend/internal/membership/domain"
	membershiprepo "concord-access-core/backend/internal/membership/repository"
	overwritedomain "concord-access-core/backend/internal/overwrite/domain"
	overwriterepo "concord-access-core/backend/internal/overwrite/repository"
	"concord-access-core/backend/internal/permission"
	roledomain "concord-access-core/backend/internal/role/domain"
	rolerepo "concord-access-core/backend/internal/role/repository"
	userdomain "concord-access-core/backend/internal/user/domain"
	userrepo "concord-access-core/backend/internal/user/repository"
)

const (
	ownerUsername  = "dev-owner"
	memberUsername = "dev-member"
	ownerID        = "dev-user-001"
	memberID       = "dev-user-002"
	guildID        = "dev-guild-001"
	modRoleID      = "dev-role-mods"
	channelID      = "dev-channel-general"
	staffChannelID = "dev-channel-staff"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)
	guilds := guildrepo.NewPostgresRepository(conn)
	roles := rolerepo.NewPostgresRepository(conn)
	members := membershiprepo.NewPostgresRepository(conn)
	overwrites := overwriterepo.NewPostgresRepository(conn)

	existing, err := users.GetByUsername(ctx, ownerUsername)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", ownerUsername)
		os.Exit(0)
	}

	for _, u := range []*userdomain.User{
		{ID: ownerID, Username: ownerUsername, Status: userdomain.UserStatusActive},
		{ID: memberID, Username: memberUsername, Status: userdomain.UserStatusActive},
	} {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.Username, err)
		}
	}

	if err := guilds.Create(ctx, &guilddomain.Guild{
		ID:      guildID,
		Name:    "Dev Guild",
		OwnerID: ownerID,
	}); err != nil {
		log.Fatalf("create guild: %v", err)
	}

	// The everyone role shares the guild's id and grants the baseline mask.
	everyone := permission.ViewChannels | permission.SendMessages | permission.ReadMessageHistory |
		permission.AddReactions | permission.Connect | permission.Speak
	if err := roles.Create(ctx, &roledomain.Role{
		ID:          roledomain.EveryoneRoleID(guildID),
		GuildID:     guildID,
		Name:        "everyone",
		Permissions: everyone,
	}); err != nil {
		log.Fatalf("create everyone role: %v", err)
	}

	if err := roles.Create(ctx, &roledomain.Role{
		ID:          modRoleID,
		GuildID:     guildID,
		Name:        "Moderators",
		Permissions: everyone | permission.KickMembers | permission.ManageMessages | permission.MuteMembers,
		Position:    1,
	}); err != nil {
		log.Fatalf("create moderator role: %v", err)
	}

	for _, m := range []*membershipdomain.Membership{
		{UserID: ownerID, GuildID: guildID},
		{UserID: memberID, GuildID: guildID, Nick: "Dev"},
	} {
		if err := members.Create(ctx, m); err != nil {
			log.Fatalf("add member %s: %v", m.UserID, err)
		}
	}
	if err := members.AddRole(ctx, memberID, guildID, modRoleID); err != nil {
		log.Fatalf("assign moderator role: %v", err)
	}

	// The staff channel is hidden from everyone and reopened for moderators.
	for _, o := range []*overwritedomain.Overwrite{
		{
			ChannelID:  staffChannelID,
			TargetKind: overwritedomain.TargetRole,
			TargetID:   roledomain.EveryoneRoleID(guildID),
			Deny:       permission.ViewChannels,
		},
		{
			ChannelID:  staffChannelID,
			TargetKind: overwritedomain.TargetRole,
			TargetID:   modRoleID,
			Allow:      permission.ViewChannels,
		},
		{
			ChannelID:  channelID,
			TargetKind: overwritedomain.TargetMember,
			TargetID:   memberID,
			Allow:      permission.ManageMessages,
		},
	} {
		if err := overwrites.Upsert(ctx, o); err != nil {
			log.Fatalf("create overwrite on %s: %v", o.ChannelID, err)
		}
	}

	log.Println("Seed complete.")
}
