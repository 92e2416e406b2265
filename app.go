package roundup

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	persistence "github.com/goliatone/go-persistence-bun"

	"github.com/goliatone/go-roundup/adapters/prommetrics"
	roundupcommand "github.com/goliatone/go-roundup/command"
	"github.com/goliatone/go-roundup/core"
	"github.com/goliatone/go-roundup/inbound"
	"github.com/goliatone/go-roundup/migrations"
	"github.com/goliatone/go-roundup/providers/monzo"
	"github.com/goliatone/go-roundup/security"
	sqlstore "github.com/goliatone/go-roundup/store/sql"
	"github.com/goliatone/go-roundup/webhooks"
)

// Commands groups the go-command handlers bound to the application service.
type Commands struct {
	HandleTransaction *roundupcommand.HandleTransactionCommand
	ExchangeAuthCode  *roundupcommand.ExchangeAuthCodeCommand
	RefreshAuthToken  *roundupcommand.RefreshAuthTokenCommand
	EnsureWebhook     *roundupcommand.EnsureWebhookCommand
	ConfirmSetup      *roundupcommand.ConfirmSetupCommand
}

// App is the assembled round-up service: bank client, config store, inbound
// endpoints and, when configured, the SQL store and prometheus metrics.
type App struct {
	service    *core.Service
	dispatcher *inbound.Dispatcher
	router     *chi.Mux
	commands   Commands
	metrics    *prommetrics.Recorder
	client     *persistence.Client
	ledger     webhooks.DeliveryLedger
}

type AppOption func(*appOptions)

type appOptions struct {
	database       *sqlstore.ClientConfig
	migrations     fs.FS
	transport      core.TransportAdapter
	bank           core.BankClient
	metrics        *prommetrics.Recorder
	metricsPath    string
	serviceOptions []core.Option
	routerOptions  []inbound.RouterOption
	disableLedger  bool
	secrets        security.SecretProvider
}

// WithDatabase stores the config document and webhook ledger in SQL.
func WithDatabase(cfg sqlstore.ClientConfig) AppOption {
	return func(o *appOptions) {
		copied := cfg
		o.database = &copied
	}
}

func WithMigrations(fsys fs.FS) AppOption {
	return func(o *appOptions) {
		if fsys != nil {
			o.migrations = fsys
		}
	}
}

func WithTransport(adapter core.TransportAdapter) AppOption {
	return func(o *appOptions) {
		o.transport = adapter
	}
}

// WithBank replaces the Monzo client built from the bank config.
func WithBank(client core.BankClient) AppOption {
	return func(o *appOptions) {
		o.bank = client
	}
}

// WithPrometheus records service metrics on recorder and serves them on path.
func WithPrometheus(recorder *prommetrics.Recorder, path string) AppOption {
	return func(o *appOptions) {
		o.metrics = recorder
		o.metricsPath = path
	}
}

func WithServiceOptions(opts ...core.Option) AppOption {
	return func(o *appOptions) {
		o.serviceOptions = append(o.serviceOptions, opts...)
	}
}

func WithRouterOptions(opts ...inbound.RouterOption) AppOption {
	return func(o *appOptions) {
		o.routerOptions = append(o.routerOptions, opts...)
	}
}

// WithoutDeliveryLedger hands every webhook delivery straight to the engine.
func WithoutDeliveryLedger() AppOption {
	return func(o *appOptions) {
		o.disableLedger = true
	}
}

// WithTokenEncryption keeps stored OAuth tokens sealed with provider.
func WithTokenEncryption(provider security.SecretProvider) AppOption {
	return func(o *appOptions) {
		o.secrets = provider
	}
}

func NewApp(ctx context.Context, cfg Config, opts ...AppOption) (*App, error) {
	options := appOptions{migrations: GetMigrationsFS(), metricsPath: "/metrics"}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	app := &App{metrics: options.metrics}
	serviceOpts := []core.Option{}

	bank := options.bank
	if bank == nil {
		client, err := monzo.NewClient(monzo.ConfigFromCore(cfg.Bank), options.transport, nil)
		if err != nil {
			return nil, err
		}
		bank = client
	}
	serviceOpts = append(serviceOpts, core.WithBankClient(bank))

	var documents core.DocumentStore
	if options.database != nil {
		client, stores, err := openStores(ctx, *options.database, options.migrations)
		if err != nil {
			return nil, err
		}
		app.client = client
		app.ledger = stores.Deliveries()
		documents = stores.Documents()
	} else {
		app.ledger = webhooks.NewMemoryDeliveryLedger()
	}
	if options.secrets != nil {
		if documents == nil {
			documents = core.NewMemoryDocumentStore()
		}
		sealed, err := security.NewTokenSealingStore(documents, options.secrets)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		documents = sealed
	}
	if documents != nil {
		serviceOpts = append(serviceOpts, core.WithDocumentStore(documents))
	}
	if options.disableLedger {
		app.ledger = nil
	}
	if options.metrics != nil {
		serviceOpts = append(serviceOpts, core.WithMetricsRecorder(options.metrics))
	}
	serviceOpts = append(serviceOpts, options.serviceOptions...)

	service, err := core.NewService(cfg, serviceOpts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.service = service

	app.dispatcher = inbound.NewDispatcher(nil)
	for _, handler := range []core.InboundHandler{
		inbound.NewWebhookHandler(service, app.ledger),
		inbound.NewLoginHandler(service, nil),
		inbound.NewSetupHandler(service),
	} {
		if err := app.dispatcher.Register(handler); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	routerOpts := append([]inbound.RouterOption{inbound.WithRouterLogger(service.Logger())}, options.routerOptions...)
	app.router = inbound.NewRouter(app.dispatcher, routerOpts...)
	if options.metrics != nil && strings.TrimSpace(options.metricsPath) != "" {
		app.router.Handle(options.metricsPath, options.metrics.Handler())
	}

	app.commands = Commands{
		HandleTransaction: roundupcommand.NewHandleTransactionCommand(service),
		ExchangeAuthCode:  roundupcommand.NewExchangeAuthCodeCommand(service),
		RefreshAuthToken:  roundupcommand.NewRefreshAuthTokenCommand(service),
		EnsureWebhook:     roundupcommand.NewEnsureWebhookCommand(service),
		ConfirmSetup:      roundupcommand.NewConfirmSetupCommand(service),
	}
	return app, nil
}

func openStores(ctx context.Context, cfg sqlstore.ClientConfig, source fs.FS) (*persistence.Client, *sqlstore.Stores, error) {
	client, err := sqlstore.OpenClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	dialect, err := migrations.DialectFor(cfg.Driver)
	if err == nil {
		err = migrations.Apply(ctx, source, dialect, func(ctx context.Context, _ string, fsys fs.FS) error {
			return sqlstore.Migrate(ctx, client, fsys)
		})
	}
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("roundup: migrate store: %w", err)
	}
	stores, err := sqlstore.NewStoresFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, stores, nil
}

func (a *App) Service() *core.Service {
	if a == nil {
		return nil
	}
	return a.service
}

func (a *App) Handler() http.Handler {
	if a == nil {
		return nil
	}
	return a.router
}

func (a *App) Dispatcher() *inbound.Dispatcher {
	if a == nil {
		return nil
	}
	return a.dispatcher
}

func (a *App) Commands() Commands {
	if a == nil {
		return Commands{}
	}
	return a.commands
}

func (a *App) DeliveryLedger() webhooks.DeliveryLedger {
	if a == nil {
		return nil
	}
	return a.ledger
}

// Close releases the database client when the app owns one.
func (a *App) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}
