package core

import (
	"context"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// StateCodec issues and verifies the signed CSRF state round-tripped
// through the provider consent screen.
type StateCodec interface {
	Issue(userID string, integration IntegrationType) (string, error)
	Verify(token string) (OAuthStateClaims, bool)
}

// TokenAcquirer throttles outbound calls against one provider's quota.
type TokenAcquirer interface {
	Acquire(ctx context.Context, integration IntegrationType) error
}

// Exchanger is the provider-facing half of the callback flow; the
// providers package supplies the implementation.
type Exchanger interface {
	ExchangeCode(ctx context.Context, integration IntegrationType, code string, codeVerifier string) (TokenResponse, error)
	FetchUserInfo(ctx context.Context, integration IntegrationType, accessToken string) UserInfoResult
	Revoke(ctx context.Context, integration IntegrationType, accessToken string) RevocationResult
	BuildAuthorizationURL(integration IntegrationType, userID string, state string, scopes []string) (url string, codeVerifier string, err error)
}

type ConnectionStore interface {
	Create(ctx context.Context, in CreateConnectionInput) (Connection, error)
	Get(ctx context.Context, id string) (Connection, error)
	FindByUser(ctx context.Context, userID string, integration IntegrationType) ([]Connection, error)
	UpdateStatus(ctx context.Context, id string, status ConnectionStatus, reason string) error
}

type CreateConnectionInput struct {
	UserID            string
	Integration       IntegrationType
	ExternalAccountID string
	AccountName       string
	AccountEmail      string
	Scope             string
	Status            ConnectionStatus
}

// IntegrationConnectService is the surface consumed by the command
// package and by inbound HTTP handlers elsewhere in the codebase.
type IntegrationConnectService interface {
	BeginConnect(ctx context.Context, req BeginConnectRequest) (BeginConnectResponse, error)
	CompleteCallback(ctx context.Context, req CompleteCallbackRequest) (CallbackCompletion, error)
	Disconnect(ctx context.Context, req DisconnectRequest) (DisconnectResult, error)
}
