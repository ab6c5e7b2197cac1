// Package pkce implements Proof Key for Code Exchange (RFC 7636)
// verifier/challenge generation for providers that require it.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const verifierEntropyBytes = 32

// Pair binds one authorization attempt to the client instance that will
// redeem the code. Pairs are single-use: generate a fresh one per attempt.
type Pair struct {
	Verifier  string
	Challenge string
}

// GenerateVerifier returns 32 bytes of cryptographic randomness encoded
// as unpadded URL-safe base64 (43 characters).
func GenerateVerifier() (string, error) {
	raw := make([]byte, verifierEntropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("pkce: generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// ChallengeFor derives the S256 code challenge for a verifier.
func ChallengeFor(verifier string) (string, error) {
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return "", fmt.Errorf("pkce: verifier is required")
	}
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// NewPair generates a verifier and its challenge in one step.
func NewPair() (Pair, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return Pair{}, err
	}
	challenge, err := ChallengeFor(verifier)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Verifier: verifier, Challenge: challenge}, nil
}
