package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"concord-access-core/backend/internal/guild/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a guild repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the guild for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Guild, error) {
	var g domain.Guild
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM guilds WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// IsOwner reports whether userID owns guildID. A missing guild is (false, nil).
func (r *PostgresRepository) IsOwner(ctx context.Context, guildID, userID string) (bool, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id FROM guilds WHERE id = $1`, guildID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return ownerID == userID, nil
}

// Create persists the guild. The guild must have ID and OwnerID set.
func (r *PostgresRepository) Create(ctx context.Context, g *domain.Guild) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guilds (id, name, owner_id, created_at) VALUES ($1, $2, $3, $4)`,
		g.ID, g.Name, g.OwnerID, g.CreatedAt)
	return err
}
