package core

import (
	"strings"
	"testing"
	"time"
)

func newTestStateService(t *testing.T, ttl time.Duration) *StateTokenService {
	t.Helper()
	svc, err := NewStateTokenService("test-signing-secret", ttl)
	if err != nil {
		t.Fatalf("new state token service: %v", err)
	}
	return svc
}

func TestStateTokenService_RoundTripAllIntegrations(t *testing.T) {
	svc := newTestStateService(t, 10*time.Minute)

	for _, integration := range AllIntegrationTypes() {
		token, err := svc.Issue("usr_42", integration)
		if err != nil {
			t.Fatalf("issue for %s: %v", integration, err)
		}
		claims, ok := svc.Verify(token)
		if !ok {
			t.Fatalf("expected valid state token for %s", integration)
		}
		if claims.UserID != "usr_42" {
			t.Fatalf("expected user id usr_42, got %q", claims.UserID)
		}
		if claims.Integration != integration {
			t.Fatalf("expected integration %s, got %s", integration, claims.Integration)
		}
		if claims.Nonce == "" {
			t.Fatalf("expected a nonce for %s", integration)
		}
	}
}

func TestStateTokenService_NoncesAreUnique(t *testing.T) {
	svc := newTestStateService(t, 10*time.Minute)

	first, err := svc.Issue("usr_1", IntegrationSlack)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := svc.Issue("usr_1", IntegrationSlack)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	firstClaims, _ := svc.Verify(first)
	secondClaims, _ := svc.Verify(second)
	if firstClaims.Nonce == secondClaims.Nonce {
		t.Fatalf("expected distinct nonces, got %q twice", firstClaims.Nonce)
	}
}

func TestStateTokenService_TamperedPayloadFailsVerification(t *testing.T) {
	svc := newTestStateService(t, 10*time.Minute)

	token, err := svc.Issue("usr_42", IntegrationGitHub)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three token segments, got %d", len(parts))
	}
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, ok := svc.Verify(tampered); ok {
		t.Fatalf("expected tampered token to fail verification")
	}
}

func TestStateTokenService_ExpiredTokenFailsVerification(t *testing.T) {
	svc := newTestStateService(t, 10*time.Minute)
	issuedAt := time.Unix(1_700_000_000, 0).UTC()
	svc.now = func() time.Time { return issuedAt }

	token, err := svc.Issue("usr_42", IntegrationNotion)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(601 * time.Second) }
	if _, ok := svc.Verify(token); ok {
		t.Fatalf("expected token older than 600s to fail verification")
	}

	svc.now = func() time.Time { return issuedAt.Add(599 * time.Second) }
	if _, ok := svc.Verify(token); !ok {
		t.Fatalf("expected token younger than 600s to verify")
	}
}

func TestStateTokenService_WrongSecretFailsVerification(t *testing.T) {
	issuer := newTestStateService(t, 10*time.Minute)
	verifier, err := NewStateTokenService("a-different-secret", 10*time.Minute)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := issuer.Issue("usr_42", IntegrationAsana)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, ok := verifier.Verify(token); ok {
		t.Fatalf("expected cross-secret verification to fail")
	}
}

func TestStateTokenService_MalformedInputReturnsInvalid(t *testing.T) {
	svc := newTestStateService(t, 10*time.Minute)

	for _, input := range []string{"", "   ", "not-a-token", "a.b", "a.b.c.d"} {
		if _, ok := svc.Verify(input); ok {
			t.Fatalf("expected %q to be invalid", input)
		}
	}
}

func TestNewStateTokenService_RequiresSecret(t *testing.T) {
	if _, err := NewStateTokenService("   ", time.Minute); err == nil {
		t.Fatalf("expected missing secret to be a configuration error")
	}
}
