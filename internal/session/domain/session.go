package domain

import "time"

// Session represents one authenticated device. The raw secret is never stored:
// SecretHash holds the SHA-256 of the current secret, PrevSecretHash the hash
// of the secret retired by the most recent rotation. A presented token
// matching PrevSecretHash is evidence of replay.
//
// Expiry is lazy: rows past ExpiresAt are treated as invalid on read without
// a stored transition. RevokedAt nil means not revoked.
type Session struct {
	ID             string
	UserID         string
	SecretHash     string
	PrevSecretHash string // empty until first rotation
	Device         string // client-reported device metadata
	IPAddress      string
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	LastUsedAt     *time.Time
	CreatedAt      time.Time
}

// Revoked reports whether the session has been explicitly revoked.
func (s *Session) Revoked() bool { return s.RevokedAt != nil }

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Active reports whether the session is neither revoked nor expired.
func (s *Session) Active(now time.Time) bool { return !s.Revoked() && !s.Expired(now) }
