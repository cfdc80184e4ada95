package security

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, expiresAt, err := p.IssueAccess("session-1", "user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Errorf("expiresAt %v is not in the future", expiresAt)
	}
	sessionID, userID, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if sessionID != "session-1" || userID != "user-1" {
		t.Errorf("claims = (%q, %q), want (session-1, user-1)", sessionID, userID)
	}
}

func TestValidateAccessRejectsGarbage(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	for _, tok := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, _, err := p.ValidateAccess(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateAccess(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestValidateAccessRejectsExpired(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", -time.Minute)
	token, _, err := p.IssueAccess("session-1", "user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, err := p.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token accepted: %v", err)
	}
}

func TestValidateAccessRejectsWrongIssuerOrAudience(t *testing.T) {
	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	issue := NewTokenProvider(signer, pub, "issuer-a", "audience-a", time.Minute)
	token, _, err := issue.IssueAccess("session-1", "user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	otherIssuer := NewTokenProvider(signer, pub, "issuer-b", "audience-a", time.Minute)
	if _, _, err := otherIssuer.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Error("token with wrong issuer accepted")
	}
	otherAudience := NewTokenProvider(signer, pub, "issuer-a", "audience-b", time.Minute)
	if _, _, err := otherAudience.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Error("token with wrong audience accepted")
	}
}

func TestParseKeyErrors(t *testing.T) {
	if _, err := ParsePrivateKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty private key: %v", err)
	}
	if _, err := ParsePublicKey("-----BEGIN PUBLIC KEY-----\nnot base64\n-----END PUBLIC KEY-----"); err == nil {
		t.Error("malformed public key accepted")
	}
}
