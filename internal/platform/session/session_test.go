package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifierRoundTrip(t *testing.T) {
	v, err := NewVerifier("s3cret", "coursehub")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	tok, err := v.Issue("user_1", "a@example.com", true, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user_1" || claims.Email != "a@example.com" || !claims.IsPremium {
		t.Fatalf("Verify: unexpected claims %+v", claims)
	}
}

func TestVerifierRejects(t *testing.T) {
	v, _ := NewVerifier("s3cret", "")
	other, _ := NewVerifier("different", "")

	expired, _ := v.Issue("user_1", "", false, -time.Hour)
	foreign, _ := other.Issue("user_1", "", false, time.Hour)
	noSubject, _ := v.Issue("", "", false, time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user_1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"expired":    expired,
		"foreign":    foreign,
		"no subject": noSubject,
		"alg none":   noneAlg,
	} {
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: want ErrInvalidToken got=%v", name, err)
		}
	}
}

func TestVerifierIssuer(t *testing.T) {
	v, _ := NewVerifier("s3cret", "coursehub")
	other, _ := NewVerifier("s3cret", "someone-else")
	tok, _ := other.Issue("user_1", "", false, time.Hour)
	if _, err := v.Verify(tok); err == nil {
		t.Fatalf("Verify: expected issuer mismatch to fail")
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier("  ", ""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("NewVerifier: want ErrMissingSecret got=%v", err)
	}
}
