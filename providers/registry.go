package providers

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// ScopeFormat controls how a descriptor's scope list is rendered into the
// authorize URL.
type ScopeFormat string

const (
	// ScopeFormatSpace joins scopes with spaces (the OAuth2 default).
	ScopeFormatSpace ScopeFormat = "space"
	// ScopeFormatComma joins scopes with commas (slack).
	ScopeFormatComma ScopeFormat = "comma"
	// ScopeFormatNone omits the scope parameter entirely; the provider
	// derives grants from the app registration.
	ScopeFormatNone ScopeFormat = "none"
)

// CredentialPlacement controls where client credentials travel on the
// token exchange. Body and Basic are mutually exclusive; never both.
type CredentialPlacement string

const (
	CredentialsInBody    CredentialPlacement = "body"
	CredentialsBasicAuth CredentialPlacement = "basic"
)

// UserInfoSpec describes the best-effort post-connection enrichment call.
// A zero Endpoint means the provider exposes no usable user-info surface.
type UserInfoSpec struct {
	Endpoint string
	// Method is GET for every provider except dropbox, whose
	// get_current_account endpoint only accepts POST.
	Method string
	// AuthScheme prefixes the Authorization header value ("Bearer" for
	// everyone in the current table; kept per-row so a "token"-scheme
	// provider is a row edit).
	AuthScheme string
	Headers    map[string]string
	Map        func(payload map[string]any) core.OAuthUserInfo
}

// RevocationBody selects the revoke request body shape.
type RevocationBody string

const (
	RevocationBodyNone RevocationBody = "none"
	// RevocationBodyJSONToken sends {"access_token": "..."} as JSON.
	RevocationBodyJSONToken RevocationBody = "json_token"
	// RevocationBodyFormToken sends token=... form-encoded.
	RevocationBodyFormToken RevocationBody = "form_token"
	// RevocationBodyFormClientToken sends client credentials plus token
	// form-encoded.
	RevocationBodyFormClientToken RevocationBody = "form_client_token"
)

// RevocationSpec describes the provider's teardown call. A zero Endpoint
// means revocation is a no-op that reports success.
type RevocationSpec struct {
	// Endpoint may contain {client_id}, substituted at request time.
	Endpoint string
	Method   string
	// Auth is "bearer", "basic", or "none".
	Auth string
	Body RevocationBody
}

// Descriptor is the full capability row for one provider. Rows are
// immutable after process start; components read, never write.
type Descriptor struct {
	Type                  core.IntegrationType
	AuthorizationEndpoint string
	TokenEndpoint         string

	DefaultScopes   []string
	ScopeFormat     ScopeFormat
	ExtraAuthParams map[string]string

	CredentialPlacement CredentialPlacement
	RequiresPKCE        bool

	// TwoStepExchange marks the non-standard provider that first obtains
	// an app-level token from AppTokenEndpoint using only app credentials,
	// then redeems the user's code with that token as a Bearer credential.
	TwoStepExchange  bool
	AppTokenEndpoint string

	UserInfo   UserInfoSpec
	Revocation RevocationSpec
	RateLimit  core.RateLimitConfig
}

// HasRevocationEndpoint reports whether a revoke call would hit the network.
func (d Descriptor) HasRevocationEndpoint() bool {
	return strings.TrimSpace(d.Revocation.Endpoint) != ""
}

// HasUserInfoEndpoint reports whether the provider exposes user info.
func (d Descriptor) HasUserInfoEndpoint() bool {
	return strings.TrimSpace(d.UserInfo.Endpoint) != ""
}

// Get returns the descriptor for an integration type. Total: every
// enumeration member has a row, so there is no error path. Unknown values
// return a zero descriptor whose endpoints are empty; callers that accept
// external input must validate the type first.
func Get(integration core.IntegrationType) Descriptor {
	return table[integration]
}

// All returns every descriptor in enumeration order.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(table))
	for _, integration := range core.AllIntegrationTypes() {
		out = append(out, table[integration])
	}
	return out
}

// RequiresPKCE is a convenience projection over the descriptor table.
func RequiresPKCE(integration core.IntegrationType) bool {
	return table[integration].RequiresPKCE
}

// RateLimitFor returns the provider's documented outbound quota.
func RateLimitFor(integration core.IntegrationType) core.RateLimitConfig {
	return table[integration].RateLimit
}

var table = map[core.IntegrationType]Descriptor{
	core.IntegrationSlack: {
		Type:                  core.IntegrationSlack,
		AuthorizationEndpoint: "https://slack.com/oauth/v2/authorize",
		TokenEndpoint:         "https://slack.com/api/oauth.v2.access",
		DefaultScopes:         []string{"channels:read", "chat:write", "users:read"},
		ScopeFormat:           ScopeFormatComma,
		CredentialPlacement:   CredentialsInBody,
		UserInfo: UserInfoSpec{
			Endpoint:   "https://slack.com/api/auth.test",
			Method:     "POST",
			AuthScheme: "Bearer",
			Map:        mapSlackUserInfo,
		},
		Revocation: RevocationSpec{
			Endpoint: "https://slack.com/api/auth.revoke",
			Method:   "GET",
			Auth:     "bearer",
			Body:     RevocationBodyNone,
		},
		RateLimit: core.RateLimitConfig{TokensPerSecond: 1, MaxBurst: 5, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationGitHub: {
		Type:                  core.IntegrationGitHub,
		AuthorizationEndpoint: "https://github.com/login/oauth/authorize",
		TokenEndpoint:         "https://github.com/login/oauth/access_token",
		DefaultScopes:         []string{"repo", "read:user"},
		ScopeFormat:           ScopeFormatSpace,
		CredentialPlacement:   CredentialsInBody,
		UserInfo: UserInfoSpec{
			Endpoint:   "https://api.github.com/user",
			Method:     "GET",
			AuthScheme: "Bearer",
			Map:        mapGitHubUserInfo,
		},
		Revocation: RevocationSpec{
			Endpoint: "https://api.github.com/applications/{client_id}/grant",
			Method:   "DELETE",
			Auth:     "basic",
			Body:     RevocationBodyJSONToken,
		},
		RateLimit: core.RateLimitConfig{TokensPerSecond: 1.4, MaxBurst: 10, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationGoogleDrive: {
		Type:                  core.IntegrationGoogleDrive,
		AuthorizationEndpoint: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenEndpoint:         "https://oauth2.googleapis.com/token",
		DefaultScopes: []string{
			"https://www.googleapis.com/auth/drive.file",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		ScopeFormat: ScopeFormatSpace,
		// Google only issues a refresh token when consent is forced and
		// offline access is requested explicitly.
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
		CredentialPlacement: CredentialsInBody,
		UserInfo: UserInfoSpec{
			Endpoint:   "https://www.googleapis.com/oauth2/v2/userinfo",
			Method:     "GET",
			AuthScheme: "Bearer",
			Map:        mapGoogleUserInfo,
		},
		Revocation: RevocationSpec{
			Endpoint: "https://oauth2.googleapis.com/revoke",
			Method:   "POST",
			Auth:     "none",
			Body:     RevocationBodyFormToken,
		},
		RateLimit: core.RateLimitConfig{TokensPerSecond: 10, MaxBurst: 10, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationDropbox: {
		Type:                  core.IntegrationDropbox,
		AuthorizationEndpoint: "https://www.dropbox.com/oauth2/authorize",
		TokenEndpoint:         "https://api.dropboxapi.com/oauth2/token",
		DefaultScopes:         []string{"files.content.write", "files.content.read", "account_info.read"},
		ScopeFormat:           ScopeFormatSpace,
		ExtraAuthParams: map[string]string{
			"token_access_type": "offline",
		},
		CredentialPlacement: CredentialsInBody,
		RequiresPKCE:        true,
		UserInfo: UserInfoSpec{
			Endpoint:   "https://api.dropboxapi.com/2/users/get_current_account",
			Method:     "POST",
			AuthScheme: "Bearer",
			Map:        mapDropboxUserInfo,
		},
		Revocation: RevocationSpec{
			Endpoint: "https://api.dropboxapi.com/2/auth/token/revoke",
			Method:   "POST",
			Auth:     "bearer",
			Body:     RevocationBodyNone,
		},
		RateLimit: core.RateLimitConfig{TokensPerSecond: 2, MaxBurst: 10, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationNotion: {
		Type:                  core.IntegrationNotion,
		AuthorizationEndpoint: "https://api.notion.com/v1/oauth/authorize",
		TokenEndpoint:         "https://api.notion.com/v1/oauth/token",
		// Notion grants are configured on the integration itself; the
		// authorize URL carries no scope parameter.
		ScopeFormat: ScopeFormatNone,
		ExtraAuthParams: map[string]string{
			"owner": "user",
		},
		CredentialPlacement: CredentialsBasicAuth,
		UserInfo: UserInfoSpec{
			Endpoint:   "https://api.notion.com/v1/users/me",
			Method:     "GET",
			AuthScheme: "Bearer",
			Headers:    map[string]string{"Notion-Version": "2022-06-28"},
			Map:        mapNotionUserInfo,
		},
		RateLimit: core.RateLimitConfig{TokensPerSecond: 3, MaxBurst: 3, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationAsana: {
		Type:                  core.IntegrationAsana,
		AuthorizationEndpoint: "https://app.asana.com/-/oauth_authorize",
		TokenEndpoint:         "https://app.asana.com/-/oauth_token",
		DefaultScopes:         []string{"default"},
		ScopeFormat:           ScopeFormatSpace,
		CredentialPlacement:   CredentialsInBody,
		RequiresPKCE:          true,
		UserInfo: UserInfoSpec{
			Endpoint:   "https://app.asana.com/api/1.0/users/me",
			Method:     "GET",
			AuthScheme: "Bearer",
			Map:        mapAsanaUserInfo,
		},
		Revocation: RevocationSpec{
			Endpoint: "https://app.asana.com/-/oauth_revoke",
			Method:   "POST",
			Auth:     "none",
			Body:     RevocationBodyFormClientToken,
		},
		RateLimit: core.RateLimitConfig{TokensPerSecond: 2.5, MaxBurst: 10, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationHubSpot: {
		Type:                  core.IntegrationHubSpot,
		AuthorizationEndpoint: "https://app.hubspot.com/oauth/authorize",
		TokenEndpoint:         "https://api.hubapi.com/oauth/v1/token",
		DefaultScopes:         []string{"crm.objects.contacts.read", "crm.objects.contacts.write"},
		ScopeFormat:           ScopeFormatSpace,
		CredentialPlacement:   CredentialsInBody,
		// HubSpot has no token revocation endpoint; disconnects drop the
		// stored credential only.
		RateLimit: core.RateLimitConfig{TokensPerSecond: 10, MaxBurst: 10, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationFigma: {
		Type:                  core.IntegrationFigma,
		AuthorizationEndpoint: "https://www.figma.com/oauth",
		TokenEndpoint:         "https://www.figma.com/api/oauth/token",
		DefaultScopes:         []string{"file_read"},
		ScopeFormat:           ScopeFormatSpace,
		CredentialPlacement:   CredentialsInBody,
		UserInfo: UserInfoSpec{
			Endpoint:   "https://api.figma.com/v1/me",
			Method:     "GET",
			AuthScheme: "Bearer",
			Map:        mapFigmaUserInfo,
		},
		RateLimit: core.RateLimitConfig{TokensPerSecond: 1, MaxBurst: 5, RetryAfterHeader: "Retry-After"},
	},
	core.IntegrationTrello: {
		Type:                  core.IntegrationTrello,
		AuthorizationEndpoint: "https://trello.com/1/authorize",
		TokenEndpoint:         "https://trello.com/1/oauth/token",
		ScopeFormat:           ScopeFormatNone,
		CredentialPlacement:   CredentialsInBody,
		// Trello's exchange is non-standard: an app-level token must be
		// obtained first and presented as a Bearer credential while
		// redeeming the user's code.
		TwoStepExchange:  true,
		AppTokenEndpoint: "https://trello.com/1/oauth/app-token",
		RateLimit:        core.RateLimitConfig{TokensPerSecond: 10, MaxBurst: 10, RetryAfterHeader: "Retry-After"},
	},
}
