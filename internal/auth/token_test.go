package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	secret := []byte("secret")
	token, expiresAt, err := signSession(secret, "u1", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	userID, jti, gotExp, err := parseSession(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != "u1" || jti != "jti-1" {
		t.Fatalf("got user %q jti %q", userID, jti)
	}
	if gotExp.Unix() != expiresAt.Unix() {
		t.Fatalf("expiry mismatch: %v vs %v", gotExp, expiresAt)
	}
}

func TestParseSessionRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	token, _, err := signSession(secret, "u1", "jti-1", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, _, err := parseSession(secret, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestParseSessionRejectsWrongSecret(t *testing.T) {
	token, _, err := signSession([]byte("secret-a"), "u1", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, _, err := parseSession([]byte("secret-b"), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}
