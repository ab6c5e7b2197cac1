package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

// ExchangeError carries the provider's token endpoint failure verbatim so
// callers can log the upstream body without guessing.
type ExchangeError struct {
	Integration core.IntegrationType
	StatusCode  int
	Body        string
}

func (e *ExchangeError) Error() string {
	if e == nil {
		return "providers: token exchange failed"
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("providers: %s token exchange failed (%d): %s", e.Integration, e.StatusCode, body)
}

// ToServiceError maps the failure into the shared error envelope.
func (e *ExchangeError) ToServiceError() error {
	if e == nil {
		return nil
	}
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.IntegrationsErrorExchangeFailed).
		WithMetadata(map[string]any{
			"integration": string(e.Integration),
			"status_code": e.StatusCode,
		})
}

// ExchangeCode redeems an authorization code for a normalized token
// response. Every provider quirk lives in the descriptor row; the only
// imperative branch is the two-step exchange shape.
func (c *Client) ExchangeCode(ctx context.Context, integration core.IntegrationType, code string, codeVerifier string) (core.TokenResponse, error) {
	if c == nil {
		return core.TokenResponse{}, fmt.Errorf("providers: client is nil")
	}
	if !integration.Valid() {
		return core.TokenResponse{}, fmt.Errorf("providers: unknown integration %q", integration)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return core.TokenResponse{}, fmt.Errorf("providers: authorization code is required for %q", integration)
	}

	desc := Get(integration)
	creds, err := c.cfg.Credentials(integration)
	if err != nil {
		return core.TokenResponse{}, err
	}
	if desc.RequiresPKCE && strings.TrimSpace(codeVerifier) == "" {
		return core.TokenResponse{}, fmt.Errorf("providers: %q exchange requires the code verifier", integration)
	}

	if err := c.acquire(ctx, integration); err != nil {
		return core.TokenResponse{}, err
	}

	if desc.TwoStepExchange {
		return c.exchangeTwoStep(ctx, desc, creds, code)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(c.cfg.RedirectURI(integration)); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	if verifier := strings.TrimSpace(codeVerifier); verifier != "" {
		form.Set("code_verifier", verifier)
	}

	payload, err := c.postTokenForm(ctx, desc, creds, desc.TokenEndpoint, form, "")
	if err != nil {
		return core.TokenResponse{}, err
	}
	return normalizeTokenResponse(desc, payload)
}

// RefreshToken redeems a refresh token against the same endpoint and
// credential placement the code exchange uses.
func (c *Client) RefreshToken(ctx context.Context, integration core.IntegrationType, refreshToken string) (core.TokenResponse, error) {
	if c == nil {
		return core.TokenResponse{}, fmt.Errorf("providers: client is nil")
	}
	if !integration.Valid() {
		return core.TokenResponse{}, fmt.Errorf("providers: unknown integration %q", integration)
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenResponse{}, fmt.Errorf("providers: refresh token is required for %q", integration)
	}

	desc := Get(integration)
	if desc.TwoStepExchange {
		return core.TokenResponse{}, fmt.Errorf("providers: %q tokens do not expire and cannot be refreshed", integration)
	}
	creds, err := c.cfg.Credentials(integration)
	if err != nil {
		return core.TokenResponse{}, err
	}
	if err := c.acquire(ctx, integration); err != nil {
		return core.TokenResponse{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	payload, err := c.postTokenForm(ctx, desc, creds, desc.TokenEndpoint, form, "")
	if err != nil {
		return core.TokenResponse{}, err
	}
	return normalizeTokenResponse(desc, payload)
}

// exchangeTwoStep first obtains an app-level token with only the client
// credentials, then redeems the user's code with that token as a Bearer
// credential. A failure in either leg reports as an exchange failure.
func (c *Client) exchangeTwoStep(ctx context.Context, desc Descriptor, creds core.ProviderCredentials, code string) (core.TokenResponse, error) {
	appForm := url.Values{}
	appForm.Set("grant_type", "client_credentials")

	appPayload, err := c.postTokenForm(ctx, desc, creds, desc.AppTokenEndpoint, appForm, "")
	if err != nil {
		return core.TokenResponse{}, err
	}
	appToken := strings.TrimSpace(readAnyString(appPayload["access_token"]))
	if appToken == "" {
		return core.TokenResponse{}, &ExchangeError{
			Integration: desc.Type,
			StatusCode:  http.StatusOK,
			Body:        "app token response missing access_token",
		}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(c.cfg.RedirectURI(desc.Type)); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	// The second leg is its own token endpoint call and spends its own
	// quota token.
	if err := c.acquire(ctx, desc.Type); err != nil {
		return core.TokenResponse{}, err
	}
	payload, err := c.postTokenForm(ctx, desc, creds, desc.TokenEndpoint, form, appToken)
	if err != nil {
		return core.TokenResponse{}, err
	}
	return normalizeTokenResponse(desc, payload)
}

// postTokenForm performs one token endpoint POST. Credential placement
// follows the descriptor unless a bearer token overrides it.
func (c *Client) postTokenForm(ctx context.Context, desc Descriptor, creds core.ProviderCredentials, endpoint string, form url.Values, bearerToken string) (map[string]any, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("providers: token endpoint is not configured for %q", desc.Type)
	}

	values := url.Values{}
	for key, items := range form {
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}

	useBasic := desc.CredentialPlacement == CredentialsBasicAuth
	if bearerToken == "" && !useBasic {
		values.Set("client_id", creds.ClientID)
		if creds.ClientSecret != "" {
			values.Set("client_secret", creds.ClientSecret)
		}
	}
	if bearerToken != "" {
		values.Set("client_id", creds.ClientID)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	switch {
	case bearerToken != "":
		httpReq.Header.Set("Authorization", "Bearer "+bearerToken)
	case useBasic:
		httpReq.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: %s token request failed: %w", desc.Type, err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("providers: read %s token response: %w", desc.Type, readErr)
	}
	if int64(len(body)) > maxResponseBodyBytes {
		return nil, fmt.Errorf("providers: %s token response exceeds %d bytes", desc.Type, maxResponseBodyBytes)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, &ExchangeError{Integration: desc.Type, StatusCode: response.StatusCode, Body: string(body)}
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return nil, fmt.Errorf("providers: decode %s token response: %w", desc.Type, parseErr)
	}
	if errCode := readAnyString(payload["error"]); errCode != "" {
		return nil, &ExchangeError{Integration: desc.Type, StatusCode: response.StatusCode, Body: describePayloadError(payload)}
	}
	// Slack reports failure as ok=false with a 200 status.
	if okValue, present := payload["ok"]; present {
		if okBool, isBool := okValue.(bool); isBool && !okBool {
			return nil, &ExchangeError{Integration: desc.Type, StatusCode: response.StatusCode, Body: describePayloadError(payload)}
		}
	}
	return payload, nil
}

// normalizeTokenResponse flattens the provider payload into the shared
// shape. The access token may be nested one level down; everything else
// reads from the top level with the nested object as fallback.
func normalizeTokenResponse(desc Descriptor, payload map[string]any) (core.TokenResponse, error) {
	token := core.TokenResponse{
		AccessToken:  readAnyString(payload["access_token"]),
		RefreshToken: readAnyString(payload["refresh_token"]),
		ExpiresIn:    readAnyInt64(payload["expires_in"]),
		TokenType:    normalizeTokenType(readAnyString(payload["token_type"])),
		Scope:        readAnyString(payload["scope"]),
		Raw:          payload,
	}

	if nested := readNestedMap(payload, "authed_user"); nested != nil {
		if token.AccessToken == "" {
			token.AccessToken = readAnyString(nested["access_token"])
		}
		if token.RefreshToken == "" {
			token.RefreshToken = readAnyString(nested["refresh_token"])
		}
		if token.Scope == "" {
			token.Scope = readAnyString(nested["scope"])
		}
		if token.ExpiresIn == 0 {
			token.ExpiresIn = readAnyInt64(nested["expires_in"])
		}
	}
	if token.AccessToken == "" {
		token.AccessToken = readAnyString(payload["token"])
	}

	if strings.TrimSpace(token.AccessToken) == "" {
		return core.TokenResponse{}, &ExchangeError{
			Integration: desc.Type,
			StatusCode:  http.StatusOK,
			Body:        "token response missing access token",
		}
	}
	return token, nil
}

func describePayloadError(payload map[string]any) string {
	if description := readAnyString(payload["error_description"]); description != "" {
		return description
	}
	if code := readAnyString(payload["error"]); code != "" {
		return code
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (map[string]any, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parsePayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parsePayloadForm(body)
	}
	if payload, err := parsePayloadJSON(body); err == nil {
		return payload, nil
	}
	return parsePayloadForm(body)
}

func parsePayloadJSON(body []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func parsePayloadForm(body []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	decoded := make(map[string]any, len(values))
	for key := range values {
		decoded[key] = values.Get(key)
	}
	return decoded, nil
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func readNestedMap(payload map[string]any, key string) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	nested, ok := payload[key].(map[string]any)
	if !ok {
		return nil
	}
	return nested
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
