package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/pkce"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB
)

// ClientConfig wires the descriptor table to per-deployment settings.
// Credentials and RedirectURI are lookups rather than values so that the
// client stays provider-agnostic.
type ClientConfig struct {
	Credentials    func(integration core.IntegrationType) (core.ProviderCredentials, error)
	RedirectURI    func(integration core.IntegrationType) string
	HTTPClient     core.HTTPDoer
	Limiter        core.TokenAcquirer
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Client implements the provider-facing half of the connection flow by
// driving the descriptor table. It holds no per-connection state.
type Client struct {
	cfg        ClientConfig
	httpClient core.HTTPDoer
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("providers: credentials lookup is required")
	}
	if cfg.RedirectURI == nil {
		return nil, fmt.Errorf("providers: redirect uri lookup is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// BuildAuthorizationURL returns the consent URL plus, for PKCE providers,
// the code verifier the caller must hold on to for the exchange.
func (c *Client) BuildAuthorizationURL(integration core.IntegrationType, userID string, state string, scopes []string) (string, string, error) {
	if c == nil {
		return "", "", fmt.Errorf("providers: client is nil")
	}
	if !integration.Valid() {
		return "", "", fmt.Errorf("providers: unknown integration %q", integration)
	}
	if strings.TrimSpace(userID) == "" {
		return "", "", fmt.Errorf("providers: user id is required")
	}
	creds, err := c.cfg.Credentials(integration)
	if err != nil {
		return "", "", err
	}

	desc := Get(integration)
	params := AuthorizeParams{
		ClientID:    creds.ClientID,
		RedirectURI: c.cfg.RedirectURI(integration),
		State:       state,
		Scopes:      scopes,
	}

	codeVerifier := ""
	if desc.RequiresPKCE {
		pair, pairErr := pkce.NewPair()
		if pairErr != nil {
			return "", "", pairErr
		}
		codeVerifier = pair.Verifier
		params.CodeChallenge = pair.Challenge
	}

	authURL, err := BuildAuthorizationURL(desc, params)
	if err != nil {
		return "", "", err
	}
	return authURL, codeVerifier, nil
}

func (c *Client) acquire(ctx context.Context, integration core.IntegrationType) error {
	if c == nil || c.cfg.Limiter == nil {
		return nil
	}
	return c.cfg.Limiter.Acquire(ctx, integration)
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c != nil && c.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.RequestTimeout)
	}
	return ctx, func() {}
}

var _ core.Exchanger = (*Client)(nil)
