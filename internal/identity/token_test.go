package identity

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	p := Principal{ID: "user-42", Username: "sari", Role: RoleUser, Partition: "04"}

	signed, expires, err := tokens.Issue(p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiry, got %v", expires)
	}

	claims, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-42" || claims.Role != "user" || claims.Partition != "04" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejections(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	other, err := NewTokens("different-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	signed, _, err := other.Issue(Principal{ID: "user-1", Role: RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
	if _, err := tokens.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if _, err := tokens.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	if _, err := NewTokens("", time.Hour); err == nil {
		t.Fatal("empty secret must be rejected")
	}
	if _, err := NewTokens("s", 0); err == nil {
		t.Fatal("zero ttl must be rejected")
	}
}
