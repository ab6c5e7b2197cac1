package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateTokenService issues and verifies the signed CSRF state that is
// round-tripped through the provider consent screen. Tokens are HS256
// JWTs; the signature plus the embedded expiry are the only integrity
// mechanism, so no server-side session store is needed and callback
// handlers stay stateless.
type StateTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type stateTokenClaims struct {
	UserID      string `json:"uid"`
	Integration string `json:"itype"`
	Nonce       string `json:"nonce"`
	jwt.RegisteredClaims
}

func NewStateTokenService(secret string, ttl time.Duration) (*StateTokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, newConfigError("core: state secret is required")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue mints a signed state token binding userID and integration to a
// fresh nonce, valid for the configured TTL.
func (s *StateTokenService) Issue(userID string, integration IntegrationType) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: state token service is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("core: user id is required")
	}
	if !integration.Valid() {
		return "", fmt.Errorf("core: unsupported integration type %q", integration)
	}

	now := s.now()
	claims := stateTokenClaims{
		UserID:      userID,
		Integration: integration.String(),
		Nonce:       uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("core: sign oauth state: %w", err)
	}
	return token, nil
}

// Verify validates signature and expiry. Every failure mode yields
// ok=false with zero claims; the caller must treat that as a forged
// callback and reject it outright.
func (s *StateTokenService) Verify(token string) (OAuthStateClaims, bool) {
	if s == nil {
		return OAuthStateClaims{}, false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return OAuthStateClaims{}, false
	}

	claims := &stateTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || parsed == nil || !parsed.Valid {
		return OAuthStateClaims{}, false
	}

	integration, parseErr := ParseIntegrationType(claims.Integration)
	if parseErr != nil {
		return OAuthStateClaims{}, false
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.Nonce) == "" {
		return OAuthStateClaims{}, false
	}

	out := OAuthStateClaims{
		UserID:      strings.TrimSpace(claims.UserID),
		Integration: integration,
		Nonce:       strings.TrimSpace(claims.Nonce),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, true
}

var _ StateCodec = (*StateTokenService)(nil)
