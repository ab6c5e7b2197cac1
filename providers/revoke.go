package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// Revoke invalidates a token at the provider. Best effort: a provider
// without a revocation endpoint reports success without touching the
// network, and upstream failures are reported in the result rather than
// returned, because local teardown proceeds either way.
func (c *Client) Revoke(ctx context.Context, integration core.IntegrationType, accessToken string) core.RevocationResult {
	if c == nil {
		return core.RevocationResult{Err: fmt.Errorf("providers: client is nil")}
	}
	if !integration.Valid() {
		return core.RevocationResult{Err: fmt.Errorf("providers: unknown integration %q", integration)}
	}

	desc := Get(integration)
	if !desc.HasRevocationEndpoint() {
		return core.RevocationResult{Revoked: true}
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.RevocationResult{Attempted: true, Err: fmt.Errorf("providers: access token is required to revoke %q", integration)}
	}
	if err := c.acquire(ctx, integration); err != nil {
		return core.RevocationResult{Attempted: true, Err: err}
	}

	creds, err := c.cfg.Credentials(integration)
	if err != nil {
		return core.RevocationResult{Attempted: true, Err: err}
	}

	if err := c.postRevocation(ctx, desc, creds, accessToken); err != nil {
		return core.RevocationResult{Attempted: true, Err: err}
	}
	return core.RevocationResult{Revoked: true, Attempted: true}
}

func (c *Client) postRevocation(ctx context.Context, desc Descriptor, creds core.ProviderCredentials, accessToken string) error {
	endpoint := strings.ReplaceAll(desc.Revocation.Endpoint, "{client_id}", url.PathEscape(creds.ClientID))
	method := strings.ToUpper(strings.TrimSpace(desc.Revocation.Method))
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	contentType := ""
	switch desc.Revocation.Body {
	case RevocationBodyJSONToken:
		encoded, err := json.Marshal(map[string]string{"access_token": accessToken})
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	case RevocationBodyFormToken:
		form := url.Values{}
		form.Set("token", accessToken)
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case RevocationBodyFormClientToken:
		form := url.Values{}
		form.Set("token", accessToken)
		form.Set("client_id", creds.ClientID)
		form.Set("client_secret", creds.ClientSecret)
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, endpoint, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	switch strings.ToLower(strings.TrimSpace(desc.Revocation.Auth)) {
	case "bearer":
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	case "basic":
		httpReq.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	}

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("providers: %s revoke request failed: %w", desc.Type, err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBodyBytes))

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("providers: %s revoke endpoint error (%d)", desc.Type, response.StatusCode)
	}
	return nil
}
