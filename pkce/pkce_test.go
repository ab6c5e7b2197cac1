package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestGenerateVerifier_LengthAndAlphabet(t *testing.T) {
	verifier, err := GenerateVerifier()
	if err != nil {
		t.Fatalf("generate verifier: %v", err)
	}
	if len(verifier) != 43 {
		t.Fatalf("expected 43-character verifier, got %d", len(verifier))
	}
	if _, err := base64.RawURLEncoding.DecodeString(verifier); err != nil {
		t.Fatalf("expected URL-safe base64 verifier: %v", err)
	}
}

func TestGenerateVerifier_Unique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 64; i++ {
		verifier, err := GenerateVerifier()
		if err != nil {
			t.Fatalf("generate verifier: %v", err)
		}
		if _, dup := seen[verifier]; dup {
			t.Fatalf("generated duplicate verifier %q", verifier)
		}
		seen[verifier] = struct{}{}
	}
}

func TestChallengeFor_Deterministic(t *testing.T) {
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	first, err := ChallengeFor(verifier)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	second, err := ChallengeFor(verifier)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic challenge, got %q then %q", first, second)
	}

	digest := sha256.Sum256([]byte(verifier))
	if want := base64.RawURLEncoding.EncodeToString(digest[:]); first != want {
		t.Fatalf("expected S256 challenge %q, got %q", want, first)
	}
}

func TestChallengeFor_DistinctVerifiers(t *testing.T) {
	first, err := ChallengeFor("verifier-one-verifier-one-verifier-one-one1")
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	second, err := ChallengeFor("verifier-two-verifier-two-verifier-two-two2")
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if first == second {
		t.Fatalf("expected different challenges for different verifiers")
	}
}

func TestChallengeFor_RequiresVerifier(t *testing.T) {
	if _, err := ChallengeFor("   "); err == nil {
		t.Fatalf("expected empty verifier to error")
	}
}

func TestNewPair(t *testing.T) {
	pair, err := NewPair()
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	challenge, err := ChallengeFor(pair.Verifier)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if pair.Challenge != challenge {
		t.Fatalf("pair challenge does not match verifier derivation")
	}
}
