package repository

import (
	"context"

	"concord-access-core/backend/internal/audit/domain"
)

// Repository defines persistence for audit entries. The core only appends;
// reads exist for operator tooling.
type Repository interface {
	Create(ctx context.Context, e *domain.Entry) error
	ListByActor(ctx context.Context, actorID string, limit, offset int32) ([]*domain.Entry, error)
}
