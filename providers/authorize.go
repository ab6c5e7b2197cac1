package providers

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthorizeParams carries the caller-supplied pieces of an authorization
// URL: registry rows contribute everything provider-shaped.
type AuthorizeParams struct {
	ClientID    string
	RedirectURI string
	State       string
	// Scopes overrides the descriptor's default scope list when non-empty.
	Scopes []string
	// CodeChallenge is set only for PKCE providers.
	CodeChallenge string
}

// BuildAuthorizationURL assembles the provider consent-screen URL. Scope
// formatting, extra parameters, and PKCE fields all come from the
// descriptor row, so no caller ever branches on provider identity.
func BuildAuthorizationURL(desc Descriptor, params AuthorizeParams) (string, error) {
	endpoint := strings.TrimSpace(desc.AuthorizationEndpoint)
	if endpoint == "" {
		return "", fmt.Errorf("providers: authorization endpoint is not configured for %q", desc.Type)
	}
	clientID := strings.TrimSpace(params.ClientID)
	if clientID == "" {
		return "", fmt.Errorf("providers: client id is required for %q", desc.Type)
	}
	state := strings.TrimSpace(params.State)
	if state == "" {
		return "", fmt.Errorf("providers: state is required for %q", desc.Type)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", clientID)
	if redirectURI := strings.TrimSpace(params.RedirectURI); redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	values.Set("state", state)

	if scope := formatScopes(desc, params.Scopes); scope != "" {
		values.Set("scope", scope)
	}
	for key, value := range desc.ExtraAuthParams {
		values.Set(key, value)
	}

	if challenge := strings.TrimSpace(params.CodeChallenge); challenge != "" {
		values.Set("code_challenge", challenge)
		values.Set("code_challenge_method", "S256")
	} else if desc.RequiresPKCE {
		return "", fmt.Errorf("providers: %q requires a PKCE code challenge", desc.Type)
	}

	if strings.Contains(endpoint, "?") {
		return endpoint + "&" + values.Encode(), nil
	}
	return endpoint + "?" + values.Encode(), nil
}

func formatScopes(desc Descriptor, override []string) string {
	scopes := normalizeScopes(override)
	if len(scopes) == 0 {
		scopes = normalizeScopes(desc.DefaultScopes)
	}
	if len(scopes) == 0 || desc.ScopeFormat == ScopeFormatNone {
		return ""
	}
	switch desc.ScopeFormat {
	case ScopeFormatComma:
		return strings.Join(scopes, ",")
	default:
		return strings.Join(scopes, " ")
	}
}

func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return nil
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		values = append(values, trimmed)
	}
	return values
}
