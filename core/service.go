package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service composes the config store, credential manager, round-up engine, and
// webhook registrar behind observed operations.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	oauthStateStore OAuthStateStore
	bank            BankClient
	store           *ConfigStore
	credentials     *CredentialManager
	engine          *RoundUpEngine
	registrar       *WebhookRegistrar
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("roundup", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("roundup"); named != nil {
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

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.bankClient == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: bank client is required"))
	}
	if builder.oauthStateStore == nil {
		builder.oauthStateStore = NewMemoryOAuthStateStore(finalConfig.OAuth.StateTTL)
	}
	if builder.documentStore == nil {
		builder.documentStore = NewMemoryDocumentStore()
	}
	if builder.configCache == nil {
		cache, cacheErr := NewRepositoryConfigCache(finalConfig.Store.CacheTTL)
		if cacheErr != nil {
			return nil, mapBuildError(builder.errorMapper, cacheErr)
		}
		builder.configCache = cache
	}

	store, err := NewConfigStore(
		builder.documentStore,
		builder.configCache,
		finalConfig.Store.DocumentID,
		finalConfig.Store.MaxWriteAttempts,
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	credentials, err := NewCredentialManager(builder.bankClient, store)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	engine, err := NewRoundUpEngine(store, credentials, builder.bankClient, finalConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	registrar, err := NewWebhookRegistrar(builder.bankClient, store, finalConfig.Bank.WebhookURL)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		oauthStateStore: builder.oauthStateStore,
		bank:            builder.bankClient,
		store:           store,
		credentials:     credentials,
		engine:          engine,
		registrar:       registrar,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) Store() *ConfigStore {
	if s == nil {
		return nil
	}
	return s.store
}

// HandleTransaction runs a webhook body through the round-up engine.
func (s *Service) HandleTransaction(ctx context.Context, body []byte) (outcome Outcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["transaction_id"] = outcome.TransactionID
		fields["user_id"] = outcome.UserID
		if err == nil {
			if outcome.Transferred {
				fields["outcome"] = "transferred"
				fields["amount"] = outcome.Amount
				fields["dedupe_key"] = outcome.DedupeKey
			} else {
				fields["outcome"] = "noop"
				fields["reason"] = outcome.Reason
			}
		}
		s.observeOperation(ctx, startedAt, "handle_transaction", err, fields)
	}()
	if err := s.ready(); err != nil {
		return Outcome{}, s.mapError(err)
	}

	outcome, err = s.engine.Handle(ctx, body)
	if err != nil {
		return outcome, s.mapError(err)
	}
	return outcome, nil
}

func (s *Service) ExchangeAuthCode(ctx context.Context, code string, redirectURI string) (user UserConfig, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["user_id"] = user.UserID
		s.observeOperation(ctx, startedAt, "exchange_auth_code", err, fields)
	}()
	if err := s.ready(); err != nil {
		return UserConfig{}, s.mapError(err)
	}
	if strings.TrimSpace(redirectURI) == "" {
		redirectURI = s.config.Bank.RedirectURL
	}
	user, err = s.credentials.ExchangeAuthCode(ctx, code, redirectURI)
	if err != nil {
		return UserConfig{}, s.mapError(err)
	}
	return user, nil
}

func (s *Service) RefreshAuthToken(ctx context.Context, userID string) (user UserConfig, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_auth_token", err, fields)
	}()
	if err := s.ready(); err != nil {
		return UserConfig{}, s.mapError(err)
	}
	user, err = s.credentials.RefreshAuthToken(ctx, userID)
	if err != nil {
		return UserConfig{}, s.mapError(err)
	}
	return user, nil
}

// EnsureWebhook registers the transaction webhook for a stored user if needed.
func (s *Service) EnsureWebhook(ctx context.Context, userID string) (webhookID string, created bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		fields["created"] = created
		s.observeOperation(ctx, startedAt, "ensure_webhook", err, fields)
	}()
	if err := s.ready(); err != nil {
		return "", false, s.mapError(err)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", false, s.mapError(err)
	}
	webhookID, created, err = s.registrar.Ensure(ctx, user)
	if err != nil {
		return "", false, s.mapError(err)
	}
	return webhookID, created, nil
}

// BeginLogin builds the bank authorization redirect with a fresh state value.
func (s *Service) BeginLogin(ctx context.Context) (redirect LoginRedirect, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_login", err, fields)
	}()
	if err := s.ready(); err != nil {
		return LoginRedirect{}, s.mapError(err)
	}
	redirect, err = s.beginLogin(ctx)
	if err != nil {
		return LoginRedirect{}, s.mapError(err)
	}
	return redirect, nil
}

// CompleteLogin exchanges the callback code and gathers the accounts and pots
// shown on the setup page.
func (s *Service) CompleteLogin(ctx context.Context, code string, state string) (page SetupPage, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["user_id"] = page.UserID
		fields["accounts"] = len(page.Accounts)
		fields["containers"] = len(page.Containers)
		s.observeOperation(ctx, startedAt, "complete_login", err, fields)
	}()
	if err := s.ready(); err != nil {
		return SetupPage{}, s.mapError(err)
	}
	page, err = s.completeLogin(ctx, code, state)
	if err != nil {
		return SetupPage{}, s.mapError(err)
	}
	return page, nil
}

// ConfirmSetup links the chosen account and pot and makes sure the webhook exists.
func (s *Service) ConfirmSetup(ctx context.Context, req SetupRequest) (result SetupResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(req.UserID)}
	defer func() {
		fields["webhook_created"] = result.WebhookCreated
		s.observeOperation(ctx, startedAt, "confirm_setup", err, fields)
	}()
	if err := s.ready(); err != nil {
		return SetupResult{}, s.mapError(err)
	}
	result, err = s.confirmSetup(ctx, req)
	if err != nil {
		return SetupResult{}, s.mapError(err)
	}
	return result, nil
}

func (s *Service) ready() error {
	if s == nil || s.engine == nil || s.store == nil || s.credentials == nil || s.registrar == nil {
		return fmt.Errorf("core: service is not initialized")
	}
	return nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}
