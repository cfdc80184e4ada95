package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	auditpkg "concord-access-core/backend/internal/audit"
	auditdomain "concord-access-core/backend/internal/audit/domain"
	"concord-access-core/backend/internal/security"
	"concord-access-core/backend/internal/session/domain"
	"concord-access-core/backend/internal/telemetry"
	telemetrydomain "concord-access-core/backend/internal/telemetry/domain"
)

// Sentinel errors for the session lifecycle. Store failures are never mapped
// onto these; they are wrapped and surfaced as infrastructure errors instead.
var (
	// ErrInvalidToken is returned when no session matches the presented secret.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrSessionExpired is returned when the matching session is past expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is returned when the matching session was revoked.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrReplayDetected is returned when an already-rotated secret is presented
	// or a concurrent rotation wins the conditional write. The session is
	// force-revoked as a side effect before this error is returned.
	ErrReplayDetected = errors.New("token replay detected; session revoked")
)

// revokeTimeout bounds the forced revocation on replay. It runs on a fresh
// context so a cancelled request cannot skip the security side effect.
const revokeTimeout = 5 * time.Second

// SessionRepo is the repository surface the lifecycle service needs.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetBySecretHash(ctx context.Context, hash string) (*domain.Session, error)
	GetByPrevSecretHash(ctx context.Context, hash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	RotateSecret(ctx context.Context, id, oldHash, newHash string, usedAt time.Time) (bool, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error)
	DeleteTerminated(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// CreateResult is the outcome of CreateSession. RawSecret is handed out
// exactly here and never retrievable again.
type CreateResult struct {
	SessionID   string
	UserID      string
	RawSecret   string
	AccessToken string
	ExpiresAt   time.Time
}

// RotateResult is the outcome of a successful ValidateAndRotate: the new raw
// secret, a fresh access token, and the authenticated user.
type RotateResult struct {
	SessionID   string
	UserID      string
	RawSecret   string
	AccessToken string
	ExpiresAt   time.Time
}

// Service manages the session lifecycle: issuance, validation with rotation,
// touch, revocation, and cleanup. It owns session rows exclusively; nothing
// else writes them.
type Service struct {
	repo       SessionRepo
	tokens     *security.TokenProvider
	auditLog   auditpkg.Logger
	events     telemetry.EventEmitter
	sessionTTL time.Duration
	retention  time.Duration
	now        func() time.Time
}

// NewService returns a session lifecycle service. tokens, auditLog, and events
// may each be nil: then no access tokens are issued and side-channel reporting
// is skipped. sessionTTL bounds a session's life from creation; retention is
// how long revoked rows are kept for audit correlation before Cleanup removes them.
func NewService(repo SessionRepo, tokens *security.TokenProvider, auditLog auditpkg.Logger, events telemetry.EventEmitter, sessionTTL, retention time.Duration) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		auditLog:   auditLog,
		events:     events,
		sessionTTL: sessionTTL,
		retention:  retention,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession issues a new session for the user: generates a high-entropy
// secret, persists only its hash plus device metadata and expiry, and returns
// the raw secret exactly once.
func (s *Service) CreateSession(ctx context.Context, userID, device, ip string) (*CreateResult, error) {
	secret, err := security.GenerateSecret()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &domain.Session{
		ID:         uuid.Must(uuid.NewV7()).String(),
		UserID:     userID,
		SecretHash: security.HashSecret(secret),
		Device:     device,
		IPAddress:  ip,
		ExpiresAt:  now.Add(s.sessionTTL),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	res := &CreateResult{
		SessionID: sess.ID,
		UserID:    userID,
		RawSecret: secret,
		ExpiresAt: sess.ExpiresAt,
	}
	if s.tokens != nil {
		token, _, err := s.tokens.IssueAccess(sess.ID, userID)
		if err != nil {
			return nil, err
		}
		res.AccessToken = token
	}
	if s.auditLog != nil {
		s.auditLog.Log(ctx, auditpkg.Event{
			ActorID:    userID,
			Action:     auditdomain.ActionSessionCreated,
			TargetKind: "session",
			TargetID:   sess.ID,
			After:      sessionSnapshot(sess),
		})
	}
	s.emit(ctx, telemetrydomain.EventSessionCreated, sess, nil)
	return res, nil
}

// ValidateAndRotate authenticates a presented secret and rotates it. On
// success the stored hash has been atomically replaced; exactly one caller can
// win that write. A presented secret matching a retired hash, or a lost
// rotation race, is treated as replay: the session is force-revoked and
// ErrReplayDetected returned.
func (s *Service) ValidateAndRotate(ctx context.Context, rawSecret string) (*RotateResult, error) {
	if rawSecret == "" {
		return nil, ErrInvalidToken
	}
	hash := security.HashSecret(rawSecret)
	sess, err := s.repo.GetBySecretHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		return nil, s.checkReplayedSecret(ctx, hash)
	}
	if sess.Revoked() {
		return nil, ErrSessionRevoked
	}
	now := s.now()
	if sess.Expired(now) {
		return nil, ErrSessionExpired
	}
	newSecret, err := security.GenerateSecret()
	if err != nil {
		return nil, err
	}
	rotated, err := s.repo.RotateSecret(ctx, sess.ID, hash, security.HashSecret(newSecret), now)
	if err != nil {
		return nil, fmt.Errorf("rotate session secret: %w", err)
	}
	if !rotated {
		// Lost the conditional write: another request rotated this secret
		// first. Concurrent presentation of one secret is replay, not a
		// transient conflict.
		s.forceRevoke(ctx, sess, "concurrent rotation race")
		return nil, ErrReplayDetected
	}
	res := &RotateResult{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		RawSecret: newSecret,
		ExpiresAt: sess.ExpiresAt,
	}
	if s.tokens != nil {
		token, _, err := s.tokens.IssueAccess(sess.ID, sess.UserID)
		if err != nil {
			return nil, err
		}
		res.AccessToken = token
	}
	if s.auditLog != nil {
		s.auditLog.Log(ctx, auditpkg.Event{
			ActorID:    sess.UserID,
			Action:     auditdomain.ActionSessionRotated,
			TargetKind: "session",
			TargetID:   sess.ID,
		})
	}
	s.emit(ctx, telemetrydomain.EventSessionRotated, sess, nil)
	return res, nil
}

// checkReplayedSecret decides between plain NotFound and replay of a retired
// secret. Replay force-revokes the session even if the caller ignores the error.
func (s *Service) checkReplayedSecret(ctx context.Context, hash string) error {
	sess, err := s.repo.GetByPrevSecretHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("lookup retired secret: %w", err)
	}
	if sess == nil {
		return ErrInvalidToken
	}
	s.forceRevoke(ctx, sess, "retired secret presented")
	return ErrReplayDetected
}

// forceRevoke revokes the session on a fresh context so the security side
// effect survives caller cancellation, then reports it to audit and telemetry.
func (s *Service) forceRevoke(ctx context.Context, sess *domain.Session, reason string) {
	revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revokeTimeout)
	defer cancel()
	if err := s.repo.Revoke(revokeCtx, sess.ID, s.now()); err != nil {
		// The sentinel is still returned to the caller; the revocation will be
		// retried by the next presentation of either hash.
		log.Printf("session: force revoke %s failed: %v", sess.ID, err)
	}
	if s.auditLog != nil {
		s.auditLog.Log(revokeCtx, auditpkg.Event{
			ActorID:    sess.UserID,
			Action:     auditdomain.ActionSessionReplayDetected,
			TargetKind: "session",
			TargetID:   sess.ID,
			Before:     sessionSnapshot(sess),
			Reason:     reason,
		})
	}
	meta, _ := json.Marshal(map[string]string{"reason": reason})
	s.emit(revokeCtx, telemetrydomain.EventReplayDetected, sess, meta)
}

// Touch advances the session's last-used time only. It never changes expiry
// or the stored secret. Inactive sessions report why instead of touching.
func (s *Service) Touch(ctx context.Context, sessionID string) error {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		return ErrInvalidToken
	}
	if sess.Revoked() {
		return ErrSessionRevoked
	}
	now := s.now()
	if sess.Expired(now) {
		return ErrSessionExpired
	}
	if err := s.repo.Touch(ctx, sessionID, now); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// RevokeSession sets the revocation timestamp. Idempotent: revoking an
// already-revoked or missing session is not an error.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	if err := s.repo.Revoke(ctx, sessionID, s.now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if s.auditLog != nil {
		s.auditLog.Log(ctx, auditpkg.Event{
			Action:     auditdomain.ActionSessionRevoked,
			TargetKind: "session",
			TargetID:   sessionID,
		})
	}
	return nil
}

// RevokeAllSessions revokes every active session for the user except
// exceptSessionID (empty revokes all). Used on credential change or an
// explicit log-out-everywhere.
func (s *Service) RevokeAllSessions(ctx context.Context, userID, exceptSessionID string) error {
	n, err := s.repo.RevokeAllByUser(ctx, userID, exceptSessionID, s.now())
	if err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}
	if s.auditLog != nil {
		meta := map[string]any{"revoked": n}
		if exceptSessionID != "" {
			meta["except"] = exceptSessionID
		}
		s.auditLog.Log(ctx, auditpkg.Event{
			ActorID:    userID,
			Action:     auditdomain.ActionSessionsRevokedAll,
			TargetKind: "user",
			TargetID:   userID,
			After:      meta,
		})
	}
	return nil
}

// Cleanup deletes rows that are expired or revoked-and-older-than-retention
// and returns the number removed. Invoked by an external scheduler, never on
// the request path.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteTerminated(ctx, s.now(), s.retention)
	if err != nil {
		return 0, fmt.Errorf("session cleanup: %w", err)
	}
	return n, nil
}

// sessionSnapshot is the audit-safe view of a session: metadata only, never
// secret material.
func sessionSnapshot(sess *domain.Session) map[string]any {
	return map[string]any{
		"user_id":    sess.UserID,
		"device":     sess.Device,
		"ip":         sess.IPAddress,
		"expires_at": sess.ExpiresAt,
	}
}

func (s *Service) emit(ctx context.Context, eventType string, sess *domain.Session, metadata json.RawMessage) {
	if s.events == nil {
		return
	}
	telemetry.EmitAsync(s.events, ctx, &telemetrydomain.Event{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		EventType: eventType,
		Source:    "session_service",
		Metadata:  metadata,
		CreatedAt: s.now(),
	})
}
