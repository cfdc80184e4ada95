package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"concord-access-core/backend/internal/audit/domain"
	auditrepo "concord-access-core/backend/internal/audit/repository"
)

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// Event describes one auditable change before serialization. Before and After
// are marshalled to JSON snapshots; either may be nil. Callers must never put
// raw session secrets in either snapshot.
type Event struct {
	ActorID    string
	Action     domain.ActionKind
	TargetKind string
	TargetID   string
	Before     any
	After      any
	Reason     string
}

// Logger writes a single audit entry per event. Used by the session lifecycle
// and overwrite write paths. Log is best-effort: failures are logged and do
// not affect the caller.
type Logger interface {
	Log(ctx context.Context, ev Event)
}

// RepoLogger implements Logger using the audit repository and an optional IP extractor.
type RepoLogger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns a Logger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *RepoLogger {
	return &RepoLogger{repo: repo, ipExtractor: ipExtractor}
}

// Log writes one audit entry. Best-effort: errors are logged and not returned.
// Events with an action outside the closed enumeration are dropped loudly.
func (l *RepoLogger) Log(ctx context.Context, ev Event) {
	if l.repo == nil {
		return
	}
	if !ev.Action.Valid() {
		log.Printf("audit: dropping event with unknown action %q", ev.Action)
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.Entry{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ActorID:    ev.ActorID,
		Action:     ev.Action,
		TargetKind: ev.TargetKind,
		TargetID:   ev.TargetID,
		Before:     marshalSnapshot(ev.Action, "before", ev.Before),
		After:      marshalSnapshot(ev.Action, "after", ev.After),
		Reason:     ev.Reason,
		IP:         ip,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log %s on %s/%s: %v", ev.Action, ev.TargetKind, ev.TargetID, err)
	}
}

func marshalSnapshot(action domain.ActionKind, side string, v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("audit: failed to marshal %s snapshot for %s: %v", side, action, err)
		return nil
	}
	return b
}
