package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	auditpkg "concord-access-core/backend/internal/audit"
	auditdomain "concord-access-core/backend/internal/audit/domain"
	"concord-access-core/backend/internal/security"
	"concord-access-core/backend/internal/session/domain"
)

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Session

	failNextRotate bool  // force the conditional write to miss once
	err            error // returned by every call when set
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: map[string]*domain.Session{}}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if s, ok := r.m[id]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

func (r *memSessionRepo) GetBySecretHash(ctx context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, s := range r.m {
		if s.SecretHash == hash {
			s2 := *s
			return &s2, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) GetByPrevSecretHash(ctx context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, s := range r.m {
		if s.PrevSecretHash == hash {
			s2 := *s
			return &s2, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memSessionRepo) RotateSecret(ctx context.Context, id, oldHash, newHash string, usedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.failNextRotate {
		r.failNextRotate = false
		return false, nil
	}
	s, ok := r.m[id]
	if !ok || s.SecretHash != oldHash || s.RevokedAt != nil {
		return false, nil
	}
	s.PrevSecretHash = s.SecretHash
	s.SecretHash = newHash
	t := usedAt
	s.LastUsedAt = &t
	return true, nil
}

func (r *memSessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	s, ok := r.m[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	if s.LastUsedAt == nil || at.After(*s.LastUsedAt) {
		t := at
		s.LastUsedAt = &t
	}
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if s, ok := r.m[id]; ok && s.RevokedAt == nil {
		t := at
		s.RevokedAt = &t
	}
	return nil
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for _, s := range r.m {
		if s.UserID == userID && s.RevokedAt == nil && s.ID != exceptID {
			t := at
			s.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) DeleteTerminated(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	cutoff := now.Add(-retention)
	var n int64
	for id, s := range r.m {
		if !now.Before(s.ExpiresAt) || (s.RevokedAt != nil && !s.RevokedAt.After(cutoff)) {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) get(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id]
}

type memAuditLogger struct {
	mu     sync.Mutex
	events []auditpkg.Event
}

func (l *memAuditLogger) Log(ctx context.Context, ev auditpkg.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *memAuditLogger) byAction(kind auditdomain.ActionKind) []auditpkg.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []auditpkg.Event
	for _, ev := range l.events {
		if ev.Action == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestService(t *testing.T, repo *memSessionRepo) (*Service, *memAuditLogger) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	auditLog := &memAuditLogger{}
	svc := NewService(repo, tokens, auditLog, nil, 7*24*time.Hour, 30*24*time.Hour)
	return svc, auditLog
}

func TestCreateSessionStoresOnlyHash(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)

	res, err := svc.CreateSession(context.Background(), "user-1", "firefox-linux", "203.0.113.7")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if res.RawSecret == "" || res.AccessToken == "" {
		t.Fatal("missing raw secret or access token")
	}
	stored := repo.get(res.SessionID)
	if stored == nil {
		t.Fatal("session not persisted")
	}
	if stored.SecretHash == res.RawSecret {
		t.Error("raw secret stored verbatim")
	}
	if stored.SecretHash != security.HashSecret(res.RawSecret) {
		t.Error("stored hash does not match the issued secret")
	}
	if !stored.ExpiresAt.After(time.Now()) {
		t.Error("expiry not in the future")
	}
	if stored.Device != "firefox-linux" || stored.IPAddress != "203.0.113.7" {
		t.Errorf("device metadata lost: %+v", stored)
	}
}

func TestValidateAndRotateHappyPath(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	created, err := svc.CreateSession(context.Background(), "user-1", "dev", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rotated, err := svc.ValidateAndRotate(context.Background(), created.RawSecret)
	if err != nil {
		t.Fatalf("ValidateAndRotate: %v", err)
	}
	if rotated.UserID != "user-1" || rotated.SessionID != created.SessionID {
		t.Errorf("wrong identity: %+v", rotated)
	}
	if rotated.RawSecret == created.RawSecret {
		t.Error("rotation returned the same secret")
	}
	stored := repo.get(created.SessionID)
	if stored.SecretHash != security.HashSecret(rotated.RawSecret) {
		t.Error("stored hash is not the rotated secret's hash")
	}
	if stored.PrevSecretHash != security.HashSecret(created.RawSecret) {
		t.Error("retired hash not recorded")
	}
	if stored.LastUsedAt == nil {
		t.Error("last_used_at not advanced")
	}
}

func TestValidateAndRotateReplayOfRotatedSecret(t *testing.T) {
	repo := newMemSessionRepo()
	svc, auditLog := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")
	rotated, err := svc.ValidateAndRotate(context.Background(), created.RawSecret)
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// Replaying the original secret is a compromise signal.
	_, err = svc.ValidateAndRotate(context.Background(), created.RawSecret)
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("replay of rotated secret = %v, want ErrReplayDetected", err)
	}
	if repo.get(created.SessionID).RevokedAt == nil {
		t.Fatal("session not force-revoked on replay")
	}
	if len(auditLog.byAction(auditdomain.ActionSessionReplayDetected)) != 1 {
		t.Error("replay not audited")
	}

	// The legitimately rotated secret is now dead too.
	_, err = svc.ValidateAndRotate(context.Background(), rotated.RawSecret)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("rotated secret after replay = %v, want ErrSessionRevoked", err)
	}
}

func TestValidateAndRotateUnknownSecret(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	_, err := svc.ValidateAndRotate(context.Background(), "completely-unknown")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	_, err = svc.ValidateAndRotate(context.Background(), "")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty secret err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateAndRotateExpired(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")

	svc.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }
	_, err := svc.ValidateAndRotate(context.Background(), created.RawSecret)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if repo.get(created.SessionID).PrevSecretHash != "" {
		t.Error("expired session must not rotate")
	}
}

func TestValidateAndRotateRevoked(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")
	if err := svc.RevokeSession(context.Background(), created.SessionID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	_, err := svc.ValidateAndRotate(context.Background(), created.RawSecret)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("err = %v, want ErrSessionRevoked", err)
	}
}

func TestValidateAndRotateLostRaceRevokesEvenWhenCancelled(t *testing.T) {
	repo := newMemSessionRepo()
	svc, auditLog := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")

	repo.failNextRotate = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // the caller is already gone; the side effect must still land
	_, err := svc.ValidateAndRotate(ctx, created.RawSecret)
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("lost race = %v, want ErrReplayDetected", err)
	}
	if repo.get(created.SessionID).RevokedAt == nil {
		t.Fatal("session not revoked after lost race")
	}
	if len(auditLog.byAction(auditdomain.ActionSessionReplayDetected)) != 1 {
		t.Error("lost race not audited as replay")
	}
}

func TestAuditNeverSeesRawSecret(t *testing.T) {
	repo := newMemSessionRepo()
	svc, auditLog := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")
	_, _ = svc.ValidateAndRotate(context.Background(), created.RawSecret)
	_, _ = svc.ValidateAndRotate(context.Background(), created.RawSecret) // replay

	auditLog.mu.Lock()
	defer auditLog.mu.Unlock()
	for _, ev := range auditLog.events {
		for _, snap := range []any{ev.Before, ev.After} {
			if snap == nil {
				continue
			}
			m, ok := snap.(map[string]any)
			if !ok {
				continue
			}
			for k, v := range m {
				if s, ok := v.(string); ok && strings.Contains(s, created.RawSecret) {
					t.Errorf("audit snapshot field %q leaks the raw secret", k)
				}
			}
		}
	}
}

func TestTouch(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")
	before := repo.get(created.SessionID)
	expiresBefore := before.ExpiresAt

	if err := svc.Touch(context.Background(), created.SessionID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	after := repo.get(created.SessionID)
	if after.LastUsedAt == nil {
		t.Fatal("Touch did not set last_used_at")
	}
	if !after.ExpiresAt.Equal(expiresBefore) {
		t.Error("Touch changed expires_at")
	}
	first := *after.LastUsedAt

	// A touch with an earlier clock must not move last_used_at backwards.
	svc.now = func() time.Time { return first.Add(-time.Hour) }
	if err := svc.Touch(context.Background(), created.SessionID); err != nil {
		t.Fatalf("Touch (earlier): %v", err)
	}
	if got := repo.get(created.SessionID).LastUsedAt; got.Before(first) {
		t.Errorf("last_used_at went backwards: %v < %v", got, first)
	}
}

func TestTouchInactiveSessions(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)

	if err := svc.Touch(context.Background(), "missing"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("missing session Touch = %v, want ErrInvalidToken", err)
	}

	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")
	_ = svc.RevokeSession(context.Background(), created.SessionID)
	if err := svc.Touch(context.Background(), created.SessionID); !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("revoked session Touch = %v, want ErrSessionRevoked", err)
	}

	created2, _ := svc.CreateSession(context.Background(), "user-2", "dev", "")
	svc.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }
	if err := svc.Touch(context.Background(), created2.SessionID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expired session Touch = %v, want ErrSessionExpired", err)
	}
}

func TestRevokeSessionIdempotent(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")

	if err := svc.RevokeSession(context.Background(), created.SessionID); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	first := *repo.get(created.SessionID).RevokedAt
	if err := svc.RevokeSession(context.Background(), created.SessionID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if !repo.get(created.SessionID).RevokedAt.Equal(first) {
		t.Error("second revoke moved the revocation timestamp")
	}
	if err := svc.RevokeSession(context.Background(), "never-existed"); err != nil {
		t.Errorf("revoking unknown session should be a no-op, got %v", err)
	}
}

func TestRevokeAllSessionsExcept(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	a, _ := svc.CreateSession(context.Background(), "user-1", "laptop", "")
	b, _ := svc.CreateSession(context.Background(), "user-1", "phone", "")
	other, _ := svc.CreateSession(context.Background(), "user-2", "dev", "")

	if err := svc.RevokeAllSessions(context.Background(), "user-1", b.SessionID); err != nil {
		t.Fatalf("RevokeAllSessions: %v", err)
	}
	if repo.get(a.SessionID).RevokedAt == nil {
		t.Error("session a should be revoked")
	}
	if repo.get(b.SessionID).RevokedAt != nil {
		t.Error("excepted session b should stay active")
	}
	if repo.get(other.SessionID).RevokedAt != nil {
		t.Error("other user's session must be untouched")
	}
}

func TestCleanup(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	now := time.Now().UTC()

	live, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")
	freshRevoked, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")
	_ = svc.RevokeSession(context.Background(), freshRevoked.SessionID)

	expired := &domain.Session{
		ID: "sess-expired", UserID: "user-1", SecretHash: "h1",
		ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-48 * time.Hour),
	}
	staleRevokedAt := now.Add(-31 * 24 * time.Hour)
	staleRevoked := &domain.Session{
		ID: "sess-stale-revoked", UserID: "user-1", SecretHash: "h2",
		ExpiresAt: now.Add(time.Hour), RevokedAt: &staleRevokedAt, CreatedAt: staleRevokedAt,
	}
	_ = repo.Create(context.Background(), expired)
	_ = repo.Create(context.Background(), staleRevoked)

	n, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("Cleanup removed %d rows, want 2", n)
	}
	if repo.get("sess-expired") != nil || repo.get("sess-stale-revoked") != nil {
		t.Error("terminal rows not removed")
	}
	if repo.get(live.SessionID) == nil || repo.get(freshRevoked.SessionID) == nil {
		t.Error("live or recently revoked rows must be untouched")
	}
}

func TestStoreFailuresAreNotBusinessErrors(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")

	storeErr := errors.New("dial tcp: connection refused")
	repo.err = storeErr

	_, err := svc.ValidateAndRotate(context.Background(), created.RawSecret)
	if !errors.Is(err, storeErr) {
		t.Fatalf("store failure not surfaced: %v", err)
	}
	for _, sentinel := range []error{ErrInvalidToken, ErrSessionExpired, ErrSessionRevoked, ErrReplayDetected} {
		if errors.Is(err, sentinel) {
			t.Errorf("store failure mapped to %v", sentinel)
		}
	}
	if err := svc.Touch(context.Background(), created.SessionID); !errors.Is(err, storeErr) {
		t.Errorf("Touch store failure = %v", err)
	}
	if _, err := svc.Cleanup(context.Background()); !errors.Is(err, storeErr) {
		t.Errorf("Cleanup store failure = %v", err)
	}
}

func TestConcurrentRotationSingleWinner(t *testing.T) {
	repo := newMemSessionRepo()
	svc, _ := newTestService(t, repo)
	created, _ := svc.CreateSession(context.Background(), "user-1", "dev", "")

	const goroutines = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, replays int
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ValidateAndRotate(context.Background(), created.RawSecret)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrReplayDetected), errors.Is(err, ErrSessionRevoked):
				replays++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins > 1 {
		t.Errorf("%d rotations won, want at most 1", wins)
	}
	if wins+replays != goroutines {
		t.Errorf("wins+replays = %d, want %d", wins+replays, goroutines)
	}
}
