package integrations

import (
	"net/http"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
	"github.com/goliatone/go-integrations/ratelimit"
	sqlstore "github.com/goliatone/go-integrations/store/sql"
)

type Config = core.Config

type ProviderCredentials = core.ProviderCredentials

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type IntegrationType = core.IntegrationType

type Connection = core.Connection
type ConnectionStatus = core.ConnectionStatus
type TokenResponse = core.TokenResponse
type OAuthUserInfo = core.OAuthUserInfo

type BeginConnectRequest = core.BeginConnectRequest
type BeginConnectResponse = core.BeginConnectResponse

type CompleteCallbackRequest = core.CompleteCallbackRequest
type CallbackCompletion = core.CallbackCompletion

type DisconnectRequest = core.DisconnectRequest
type DisconnectResult = core.DisconnectResult

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithStateCodec      = core.WithStateCodec
	WithExchanger       = core.WithExchanger
	WithTokenAcquirer   = core.WithTokenAcquirer
	WithConnectionStore = core.WithConnectionStore
	WithHTTPClient      = core.WithHTTPClient
	WithNow             = core.WithNow
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds a fully wired service: a per-provider token bucket fed by
// the registry quotas, and an OAuth client that reads credentials and
// redirect URIs from the service's resolved configuration. Options
// passed by the caller are applied after the defaults, so any of the
// wired pieces can still be swapped out.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	limiter := ratelimit.NewLimiter(ratelimit.LimiterConfig{
		Limits: providers.RateLimitFor,
	})

	// The client closes over the service so credential lookups see the
	// resolved config, not the raw input. Lookups only happen once
	// operations run, after NewService has returned.
	var service *core.Service
	client, err := providers.NewClient(providers.ClientConfig{
		Credentials: func(integration core.IntegrationType) (core.ProviderCredentials, error) {
			return service.Config().CredentialsFor(integration)
		},
		RedirectURI: func(integration core.IntegrationType) string {
			return service.Config().RedirectURI(integration)
		},
		HTTPClient: http.DefaultClient,
		Limiter:    limiter,
	})
	if err != nil {
		return nil, err
	}

	options := append([]Option{
		core.WithTokenAcquirer(limiter),
		core.WithExchanger(client),
	}, opts...)

	service, err = core.NewService(cfg, options...)
	if err != nil {
		return nil, err
	}
	return service, nil
}

// WithSQLConnectionStore builds the bun-backed connection store from a
// persistence client or raw *bun.DB and returns the option that injects
// it.
func WithSQLConnectionStore(persistenceClient any) (Option, error) {
	factory := sqlstore.NewRepositoryFactory()
	if err := factory.BuildStores(persistenceClient); err != nil {
		return nil, err
	}
	return core.WithConnectionStore(factory.ConnectionStore()), nil
}
