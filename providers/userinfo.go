package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// FetchUserInfo enriches a fresh connection with the provider's view of
// the account. Best effort by contract: failures are reported in the
// result, never as an error return, and never abort the connection flow.
func (c *Client) FetchUserInfo(ctx context.Context, integration core.IntegrationType, accessToken string) core.UserInfoResult {
	if c == nil {
		return core.UserInfoResult{Err: fmt.Errorf("providers: client is nil")}
	}
	if !integration.Valid() {
		return core.UserInfoResult{Err: fmt.Errorf("providers: unknown integration %q", integration)}
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.UserInfoResult{Err: fmt.Errorf("providers: access token is required for %q user info", integration)}
	}

	desc := Get(integration)
	if !desc.HasUserInfoEndpoint() {
		return core.UserInfoResult{}
	}
	if err := c.acquire(ctx, integration); err != nil {
		return core.UserInfoResult{Err: err}
	}

	payload, err := c.getUserInfoPayload(ctx, desc, accessToken)
	if err != nil {
		return core.UserInfoResult{Err: err}
	}
	info := desc.UserInfo.Map(payload)
	if strings.TrimSpace(info.AccountID) == "" {
		return core.UserInfoResult{Err: fmt.Errorf("providers: %s user info response missing account id", integration)}
	}
	return core.UserInfoResult{Found: true, Info: info}
}

func (c *Client) getUserInfoPayload(ctx context.Context, desc Descriptor, accessToken string) (map[string]any, error) {
	method := strings.ToUpper(strings.TrimSpace(desc.UserInfo.Method))
	if method == "" {
		method = http.MethodGet
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, desc.UserInfo.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	scheme := strings.TrimSpace(desc.UserInfo.AuthScheme)
	if scheme == "" {
		scheme = "Bearer"
	}
	httpReq.Header.Set("Authorization", scheme+" "+accessToken)
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range desc.UserInfo.Headers {
		httpReq.Header.Set(key, value)
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: %s user info request failed: %w", desc.Type, err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("providers: read %s user info response: %w", desc.Type, readErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("providers: %s user info endpoint error (%d)", desc.Type, response.StatusCode)
	}

	payload, parseErr := parsePayloadJSON(body)
	if parseErr != nil {
		return nil, fmt.Errorf("providers: decode %s user info response: %w", desc.Type, parseErr)
	}
	if okValue, present := payload["ok"]; present {
		if okBool, isBool := okValue.(bool); isBool && !okBool {
			return nil, fmt.Errorf("providers: %s user info endpoint error: %s", desc.Type, describePayloadError(payload))
		}
	}
	return payload, nil
}

func mapSlackUserInfo(payload map[string]any) core.OAuthUserInfo {
	return core.OAuthUserInfo{
		AccountID:   readAnyString(payload["user_id"]),
		AccountName: readAnyString(payload["user"]),
	}
}

func mapGitHubUserInfo(payload map[string]any) core.OAuthUserInfo {
	name := readAnyString(payload["name"])
	if name == "" {
		name = readAnyString(payload["login"])
	}
	return core.OAuthUserInfo{
		AccountID:    readAnyString(payload["id"]),
		AccountName:  name,
		AccountEmail: readAnyString(payload["email"]),
	}
}

func mapGoogleUserInfo(payload map[string]any) core.OAuthUserInfo {
	return core.OAuthUserInfo{
		AccountID:    readAnyString(payload["id"]),
		AccountName:  readAnyString(payload["name"]),
		AccountEmail: readAnyString(payload["email"]),
	}
}

func mapDropboxUserInfo(payload map[string]any) core.OAuthUserInfo {
	info := core.OAuthUserInfo{
		AccountID:    readAnyString(payload["account_id"]),
		AccountEmail: readAnyString(payload["email"]),
	}
	if name := readNestedMap(payload, "name"); name != nil {
		info.AccountName = readAnyString(name["display_name"])
	}
	return info
}

func mapNotionUserInfo(payload map[string]any) core.OAuthUserInfo {
	info := core.OAuthUserInfo{
		AccountID:   readAnyString(payload["id"]),
		AccountName: readAnyString(payload["name"]),
	}
	if person := readNestedMap(payload, "person"); person != nil {
		info.AccountEmail = readAnyString(person["email"])
	}
	// Bot-owned tokens wrap the person one level deeper.
	if bot := readNestedMap(payload, "bot"); bot != nil && info.AccountEmail == "" {
		if owner := readNestedMap(bot, "owner"); owner != nil {
			if user := readNestedMap(owner, "user"); user != nil {
				if info.AccountID == "" {
					info.AccountID = readAnyString(user["id"])
				}
				if info.AccountName == "" {
					info.AccountName = readAnyString(user["name"])
				}
				if person := readNestedMap(user, "person"); person != nil {
					info.AccountEmail = readAnyString(person["email"])
				}
			}
		}
	}
	return info
}

func mapAsanaUserInfo(payload map[string]any) core.OAuthUserInfo {
	data := readNestedMap(payload, "data")
	if data == nil {
		return core.OAuthUserInfo{}
	}
	return core.OAuthUserInfo{
		AccountID:    readAnyString(data["gid"]),
		AccountName:  readAnyString(data["name"]),
		AccountEmail: readAnyString(data["email"]),
	}
}

func mapFigmaUserInfo(payload map[string]any) core.OAuthUserInfo {
	return core.OAuthUserInfo{
		AccountID:    readAnyString(payload["id"]),
		AccountName:  readAnyString(payload["handle"]),
		AccountEmail: readAnyString(payload["email"]),
	}
}
