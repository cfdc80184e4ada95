package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// secretBytes is the entropy of a session secret. 32 bytes keeps the token
// above the 256-bit floor the session contract requires.
const secretBytes = 32

// GenerateSecret returns a new opaque session secret: 32 bytes from
// crypto/rand, base64url-encoded without padding. The caller hands it to the
// client exactly once; only its hash may be persisted.
func GenerateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecret returns a SHA-256 hash of the raw secret, hex-encoded. Secrets
// are high-entropy random values, so an unsalted one-way hash is sufficient
// and keeps lookup-by-hash possible.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// SecretHashEqual performs constant-time comparison of the provided secret's
// hash with the stored hash. Returns true only if they match.
func SecretHashEqual(providedSecret, storedHash string) bool {
	providedHash := HashSecret(providedSecret)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
