package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	v := &Verifier{Secret: []byte("test-secret"), Issuer: "backend-griya"}

	token, err := v.IssueToken("user-123", "ADMIN", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, role, err := v.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("unexpected subject %q", userID)
	}
	if role != "ADMIN" {
		t.Fatalf("unexpected role %q", role)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := &Verifier{Secret: []byte("right-secret")}
	token, err := issuer.IssueToken("user-123", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier := &Verifier{Secret: []byte("wrong-secret")}
	if _, _, err := verifier.ParseAccessToken(token); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := &Verifier{Secret: []byte("test-secret"), Now: func() time.Time { return past }}
	token, err := issuer.IssueToken("user-123", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier := &Verifier{Secret: []byte("test-secret")}
	if _, _, err := verifier.ParseAccessToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	issuer := &Verifier{Secret: []byte("test-secret"), Issuer: "someone-else"}
	token, err := issuer.IssueToken("user-123", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier := &Verifier{Secret: []byte("test-secret"), Issuer: "backend-griya"}
	if _, _, err := verifier.ParseAccessToken(token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	v := &Verifier{Secret: []byte("test-secret")}
	for _, token := range []string{"", "   ", "not.a.jwt"} {
		if _, _, err := v.ParseAccessToken(token); err == nil {
			t.Fatalf("expected %q to be rejected", token)
		}
	}
}
