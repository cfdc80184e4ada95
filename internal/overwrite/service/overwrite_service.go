package service

import (
	"context"
	"fmt"

	auditpkg "concord-access-core/backend/internal/audit"
	auditdomain "concord-access-core/backend/internal/audit/domain"
	"concord-access-core/backend/internal/overwrite/domain"
)

// OverwriteRepo is the repository surface the overwrite write path needs.
type OverwriteRepo interface {
	GetByTarget(ctx context.Context, channelID string, kind domain.TargetKind, targetID string) (*domain.Overwrite, error)
	Upsert(ctx context.Context, o *domain.Overwrite) error
	Delete(ctx context.Context, channelID string, kind domain.TargetKind, targetID string) error
}

// Service is the write path for channel overwrites: it validates the
// single-row non-overlap invariant before persistence and audits every change
// with a before/after diff.
type Service struct {
	repo     OverwriteRepo
	auditLog auditpkg.Logger
}

// NewService returns an overwrite service. auditLog may be nil to skip auditing.
func NewService(repo OverwriteRepo, auditLog auditpkg.Logger) *Service {
	return &Service{repo: repo, auditLog: auditLog}
}

// maskDiff is the audit snapshot shape for an overwrite: bit names, not raw
// integers, so entries stay readable after the enumeration grows.
type maskDiff struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

func snapshot(o *domain.Overwrite) any {
	if o == nil {
		return nil
	}
	return maskDiff{Allow: o.Allow.Names(), Deny: o.Deny.Names()}
}

// Set inserts or replaces the overwrite for (channel, kind, target). An
// overwrite whose allow and deny masks overlap is rejected with
// ErrOverlappingBits before anything is written.
func (s *Service) Set(ctx context.Context, actorID string, o *domain.Overwrite, reason string) error {
	if err := o.Validate(); err != nil {
		return err
	}
	before, err := s.repo.GetByTarget(ctx, o.ChannelID, o.TargetKind, o.TargetID)
	if err != nil {
		return fmt.Errorf("load overwrite: %w", err)
	}
	if err := s.repo.Upsert(ctx, o); err != nil {
		return fmt.Errorf("store overwrite: %w", err)
	}
	if s.auditLog != nil {
		s.auditLog.Log(ctx, auditpkg.Event{
			ActorID:    actorID,
			Action:     auditdomain.ActionOverwriteSet,
			TargetKind: "overwrite",
			TargetID:   overwriteTargetID(o.ChannelID, o.TargetKind, o.TargetID),
			Before:     snapshot(before),
			After:      snapshot(o),
			Reason:     reason,
		})
	}
	return nil
}

// Delete removes the overwrite for (channel, kind, target). Deleting a
// missing overwrite is a no-op and is not audited.
func (s *Service) Delete(ctx context.Context, actorID, channelID string, kind domain.TargetKind, targetID, reason string) error {
	before, err := s.repo.GetByTarget(ctx, channelID, kind, targetID)
	if err != nil {
		return fmt.Errorf("load overwrite: %w", err)
	}
	if before == nil {
		return nil
	}
	if err := s.repo.Delete(ctx, channelID, kind, targetID); err != nil {
		return fmt.Errorf("delete overwrite: %w", err)
	}
	if s.auditLog != nil {
		s.auditLog.Log(ctx, auditpkg.Event{
			ActorID:    actorID,
			Action:     auditdomain.ActionOverwriteDeleted,
			TargetKind: "overwrite",
			TargetID:   overwriteTargetID(channelID, kind, targetID),
			Before:     snapshot(before),
			Reason:     reason,
		})
	}
	return nil
}

func overwriteTargetID(channelID string, kind domain.TargetKind, targetID string) string {
	return fmt.Sprintf("%s/%s/%s", channelID, kind, targetID)
}
