package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service orchestrates the connection lifecycle: consent URL issuance,
// callback completion, and disconnect. Provider mechanics live behind the
// Exchanger; the service owns state verification, persistence, and
// observability.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	stateCodec      StateCodec
	exchanger       Exchanger
	limiter         TokenAcquirer
	connectionStore ConnectionStore
	httpClient      HTTPDoer
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	StateCodec      StateCodec
	Exchanger       Exchanger
	Limiter         TokenAcquirer
	ConnectionStore ConnectionStore
	HTTPClient      HTTPDoer
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.stateCodec == nil {
		codec, codecErr := NewStateTokenService(finalConfig.StateSecret, finalConfig.StateTTL())
		if codecErr != nil {
			return nil, mapBuildError(builder.errorMapper, codecErr)
		}
		builder.stateCodec = codec
	}
	if builder.exchanger == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: exchanger is required"))
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		stateCodec:      builder.stateCodec,
		exchanger:       builder.exchanger,
		limiter:         builder.limiter,
		connectionStore: builder.connectionStore,
		httpClient:      builder.httpClient,
		now:             builder.now,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		StateCodec:      s.stateCodec,
		Exchanger:       s.exchanger,
		Limiter:         s.limiter,
		ConnectionStore: s.connectionStore,
		HTTPClient:      s.httpClient,
	}
}

// BeginConnect issues the signed state and builds the provider consent
// URL. Nothing is persisted; the state token carries everything the
// callback needs except, for PKCE providers, the code verifier.
func (s *Service) BeginConnect(ctx context.Context, req BeginConnectRequest) (response BeginConnectResponse, err error) {
	if s == nil {
		return BeginConnectResponse{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	fields := map[string]any{
		"integration": req.Integration,
		"user_id":     req.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_connect", err, fields)
	}()

	if !req.Integration.Valid() {
		err = s.mapError(fmt.Errorf("core: unsupported integration type %q", req.Integration))
		return BeginConnectResponse{}, err
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return BeginConnectResponse{}, err
	}
	if _, err = s.config.CredentialsFor(req.Integration); err != nil {
		err = s.mapError(err)
		return BeginConnectResponse{}, err
	}

	state, issueErr := s.stateCodec.Issue(userID, req.Integration)
	if issueErr != nil {
		err = s.mapError(issueErr)
		return BeginConnectResponse{}, err
	}

	authURL, codeVerifier, buildErr := s.exchanger.BuildAuthorizationURL(req.Integration, userID, state, req.Scopes)
	if buildErr != nil {
		err = s.mapError(buildErr)
		return BeginConnectResponse{}, err
	}

	return BeginConnectResponse{
		URL:          authURL,
		State:        state,
		CodeVerifier: codeVerifier,
	}, nil
}

// CompleteCallback verifies the returned state, redeems the code, and
// persists the connection. User info failures degrade the record, never
// the flow.
func (s *Service) CompleteCallback(ctx context.Context, req CompleteCallbackRequest) (completion CallbackCompletion, err error) {
	if s == nil {
		return CallbackCompletion{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	fields := map[string]any{
		"integration": req.Integration,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	if !req.Integration.Valid() {
		err = s.mapError(fmt.Errorf("core: unsupported integration type %q", req.Integration))
		return CallbackCompletion{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return CallbackCompletion{}, err
	}

	claims, ok := s.stateCodec.Verify(req.State)
	if !ok {
		err = s.mapError(newStateError("core: oauth state is invalid or expired"))
		return CallbackCompletion{}, err
	}
	if claims.Integration != req.Integration {
		err = s.mapError(newStateError(fmt.Sprintf(
			"core: oauth state was issued for %q, callback arrived on %q",
			claims.Integration, req.Integration,
		)))
		return CallbackCompletion{}, err
	}
	fields["user_id"] = claims.UserID

	token, exchangeErr := s.exchanger.ExchangeCode(ctx, req.Integration, req.Code, req.CodeVerifier)
	if exchangeErr != nil {
		err = s.mapError(exchangeErr)
		return CallbackCompletion{}, err
	}

	userInfo := s.exchanger.FetchUserInfo(ctx, req.Integration, token.AccessToken)
	if userInfo.Err != nil {
		s.logWarn(ctx, "user info fetch failed", map[string]any{
			"integration": req.Integration,
			"user_id":     claims.UserID,
			"error":       userInfo.Err.Error(),
		})
	}

	completion = CallbackCompletion{
		Claims:   claims,
		Token:    token,
		UserInfo: userInfo,
	}

	if s.connectionStore != nil {
		connection, storeErr := s.connectionStore.Create(ctx, CreateConnectionInput{
			UserID:            claims.UserID,
			Integration:       req.Integration,
			ExternalAccountID: userInfo.Info.AccountID,
			AccountName:       userInfo.Info.AccountName,
			AccountEmail:      userInfo.Info.AccountEmail,
			Scope:             token.Scope,
			Status:            ConnectionStatusActive,
		})
		if storeErr != nil {
			err = s.mapError(storeErr)
			return CallbackCompletion{}, err
		}
		completion.Connection = &connection
		fields["connection_id"] = connection.ID
	}

	return completion, nil
}

// Disconnect revokes the provider token best effort and marks the stored
// connection as disconnected. Revocation failure never blocks the local
// teardown.
func (s *Service) Disconnect(ctx context.Context, req DisconnectRequest) (result DisconnectResult, err error) {
	if s == nil {
		return DisconnectResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()
	fields := map[string]any{
		"integration":   req.Integration,
		"connection_id": req.ConnectionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	if !req.Integration.Valid() {
		err = s.mapError(fmt.Errorf("core: unsupported integration type %q", req.Integration))
		return DisconnectResult{}, err
	}

	revocation := s.exchanger.Revoke(ctx, req.Integration, req.AccessToken)
	if revocation.Err != nil {
		s.logWarn(ctx, "token revocation failed", map[string]any{
			"integration":   req.Integration,
			"connection_id": req.ConnectionID,
			"error":         revocation.Err.Error(),
		})
	}

	if s.connectionStore != nil && strings.TrimSpace(req.ConnectionID) != "" {
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "disconnected by user"
		}
		if updateErr := s.connectionStore.UpdateStatus(ctx, req.ConnectionID, ConnectionStatusDisconnected, reason); updateErr != nil {
			err = s.mapError(updateErr)
			return DisconnectResult{}, err
		}
	}

	return DisconnectResult{Revocation: revocation}, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

var _ IntegrationConnectService = (*Service)(nil)
