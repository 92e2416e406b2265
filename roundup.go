package roundup

import "github.com/goliatone/go-roundup/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type UserConfig = core.UserConfig
type StoredConfig = core.StoredConfig
type Outcome = core.Outcome
type SetupRequest = core.SetupRequest
type SetupResult = core.SetupResult

type BankClient = core.BankClient
type DocumentStore = core.DocumentStore
type ConfigCache = core.ConfigCache
type OAuthStateStore = core.OAuthStateStore
type MetricsRecorder = core.MetricsRecorder

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithOAuthStateStore = core.WithOAuthStateStore
	WithDocumentStore   = core.WithDocumentStore
	WithConfigCache     = core.WithConfigCache
	WithBankClient      = core.WithBankClient
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
