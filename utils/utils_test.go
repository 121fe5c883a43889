package utils

import (
	"strings"
	"testing"
	"time"
)

func TestUUIDGeneratorUnique(t *testing.T) {
	gen := UUIDGenerator{}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestPrefixedIDs(t *testing.T) {
	gen := PrefixedIDs{Prefix: "order_", Next: UUIDGenerator{}}
	if id := gen.NewID(); !strings.HasPrefix(id, "order_") || len(id) != len("order_")+36 {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("secret", "buyer-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT("secret", token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "buyer-1" {
		t.Fatalf("expected buyer-1, got %s", claims.UserID)
	}

	if _, err := ValidateJWT("other-secret", token); err == nil {
		t.Fatal("expected wrong secret to fail")
	}
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT("secret", "buyer-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ValidateJWT("secret", token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
