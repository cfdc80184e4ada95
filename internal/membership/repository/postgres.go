package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"concord-access-core/backend/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUserAndGuild returns the membership with its assigned role ids, or nil
// if the user is not a member. It returns an error only for database failures.
func (r *PostgresRepository) GetByUserAndGuild(ctx context.Context, userID, guildID string) (*domain.Membership, error) {
	var m domain.Membership
	var nick sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, guild_id, nick, joined_at
		 FROM guild_members WHERE user_id = $1 AND guild_id = $2`, userID, guildID).
		Scan(&m.UserID, &m.GuildID, &nick, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if nick.Valid {
		m.Nick = nick.String
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT role_id FROM member_roles WHERE user_id = $1 AND guild_id = $2`, userID, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, err
		}
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create persists the membership and its role assignments.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	nick := sql.NullString{String: m.Nick, Valid: m.Nick != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guild_members (user_id, guild_id, nick, joined_at) VALUES ($1, $2, $3, $4)`,
		m.UserID, m.GuildID, nick, m.JoinedAt)
	if err != nil {
		return err
	}
	for _, roleID := range m.RoleIDs {
		if err := r.AddRole(ctx, m.UserID, m.GuildID, roleID); err != nil {
			return err
		}
	}
	return nil
}

// AddRole assigns a role to the member. Idempotent.
func (r *PostgresRepository) AddRole(ctx context.Context, userID, guildID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO member_roles (user_id, guild_id, role_id) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, guild_id, role_id) DO NOTHING`,
		userID, guildID, roleID)
	return err
}

// RemoveRole unassigns a role from the member. Idempotent.
func (r *PostgresRepository) RemoveRole(ctx context.Context, userID, guildID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM member_roles WHERE user_id = $1 AND guild_id = $2 AND role_id = $3`,
		userID, guildID, roleID)
	return err
}
