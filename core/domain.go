package core

import (
	"fmt"
	"strings"
	"time"
)

// IntegrationType is the closed set of third-party providers a user can
// connect. Every per-provider table in this module is keyed by it.
type IntegrationType string

const (
	IntegrationSlack       IntegrationType = "slack"
	IntegrationGitHub      IntegrationType = "github"
	IntegrationGoogleDrive IntegrationType = "google_drive"
	IntegrationDropbox     IntegrationType = "dropbox"
	IntegrationNotion      IntegrationType = "notion"
	IntegrationAsana       IntegrationType = "asana"
	IntegrationHubSpot     IntegrationType = "hubspot"
	IntegrationFigma       IntegrationType = "figma"
	IntegrationTrello      IntegrationType = "trello"
)

// AllIntegrationTypes returns the supported providers in stable order.
func AllIntegrationTypes() []IntegrationType {
	return []IntegrationType{
		IntegrationSlack,
		IntegrationGitHub,
		IntegrationGoogleDrive,
		IntegrationDropbox,
		IntegrationNotion,
		IntegrationAsana,
		IntegrationHubSpot,
		IntegrationFigma,
		IntegrationTrello,
	}
}

func (t IntegrationType) String() string {
	return string(t)
}

func (t IntegrationType) Valid() bool {
	switch t {
	case IntegrationSlack, IntegrationGitHub, IntegrationGoogleDrive,
		IntegrationDropbox, IntegrationNotion, IntegrationAsana,
		IntegrationHubSpot, IntegrationFigma, IntegrationTrello:
		return true
	default:
		return false
	}
}

func ParseIntegrationType(value string) (IntegrationType, error) {
	parsed := IntegrationType(strings.TrimSpace(strings.ToLower(value)))
	if !parsed.Valid() {
		return "", fmt.Errorf("core: unsupported integration type %q", value)
	}
	return parsed, nil
}

// TokenResponse is the normalized token-endpoint payload. Provider field
// names differ (access_token, accessToken, nested authed_user blocks);
// the exchange layer maps them all into this one shape.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds; 0 when the provider did not report expiry
	TokenType    string
	Scope        string
	Raw          map[string]any
}

// OAuthUserInfo is the best-effort normalized account description fetched
// after a successful exchange. Any field may be empty.
type OAuthUserInfo struct {
	AccountID    string
	AccountName  string
	AccountEmail string
}

// UserInfoResult separates "no data available" from "fetch failed" while
// keeping the never-propagates contract: Err is recorded, not returned.
type UserInfoResult struct {
	Found bool
	Info  OAuthUserInfo
	Err   error
}

// RevocationResult reports a best-effort revoke. Attempted is false when
// the provider has no revocation endpoint.
type RevocationResult struct {
	Revoked   bool
	Attempted bool
	Err       error
}

// OAuthStateClaims are the signed, time-boxed claims round-tripped through
// the provider's consent screen. Never stored server-side.
type OAuthStateClaims struct {
	UserID      string
	Integration IntegrationType
	Nonce       string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// RateLimitConfig describes a provider's documented outbound quota.
type RateLimitConfig struct {
	TokensPerSecond  float64
	MaxBurst         float64
	RetryAfterHeader string
}

type ConnectionStatus string

const (
	ConnectionStatusActive       ConnectionStatus = "active"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// Connection is the persisted record of a completed consent flow. Token
// material itself is stored encrypted by the credential layer, outside
// this module; the connection record carries identity metadata only.
type Connection struct {
	ID                string
	UserID            string
	Integration       IntegrationType
	ExternalAccountID string
	AccountName       string
	AccountEmail      string
	Scope             string
	Status            ConnectionStatus
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type BeginConnectRequest struct {
	Integration IntegrationType
	UserID      string
	// Scopes overrides the provider's default scope list when non-empty.
	Scopes   []string
	Metadata map[string]any
}

type BeginConnectResponse struct {
	URL   string
	State string
	// CodeVerifier is set only for PKCE providers. The caller must retain
	// it until the callback is processed; it is the one piece of
	// per-attempt state that cannot be made stateless.
	CodeVerifier string
}

type CompleteCallbackRequest struct {
	Integration  IntegrationType
	Code         string
	State        string
	CodeVerifier string
}

type CallbackCompletion struct {
	Claims     OAuthStateClaims
	Token      TokenResponse
	UserInfo   UserInfoResult
	Connection *Connection
}

type DisconnectRequest struct {
	ConnectionID string
	Integration  IntegrationType
	AccessToken  string
	Reason       string
}

type DisconnectResult struct {
	Revocation RevocationResult
}
