package repository

import (
	"context"

	"concord-access-core/backend/internal/overwrite/domain"
)

// Repository defines persistence for channel overwrites.
type Repository interface {
	// ListByChannel returns every overwrite row for the channel.
	ListByChannel(ctx context.Context, channelID string) ([]*domain.Overwrite, error)
	// GetByTarget returns the single overwrite for (channel, kind, target), or nil.
	GetByTarget(ctx context.Context, channelID string, kind domain.TargetKind, targetID string) (*domain.Overwrite, error)
	// Upsert inserts or replaces the overwrite for its (channel, kind, target).
	// Callers must Validate first; Upsert revalidates as a final guard.
	Upsert(ctx context.Context, o *domain.Overwrite) error
	// Delete removes the overwrite for (channel, kind, target). Idempotent.
	Delete(ctx context.Context, channelID string, kind domain.TargetKind, targetID string) error
}
