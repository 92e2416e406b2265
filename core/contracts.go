package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// DocumentStore persists the aggregate config document.
type DocumentStore interface {
	Get(ctx context.Context, id string) (ConfigDocument, bool, error)
	// Put overwrites the document unconditionally and bumps its version.
	Put(ctx context.Context, doc ConfigDocument) (ConfigDocument, error)
	// CompareAndPut writes only when the stored version equals expectedVersion.
	// An expectedVersion of zero means the document must not exist yet.
	// A mismatch returns an error matched by IsVersionConflict.
	CompareAndPut(ctx context.Context, doc ConfigDocument, expectedVersion int64) (ConfigDocument, error)
}

type ConfigCache interface {
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (ConfigDocument, error)) (ConfigDocument, error)
	Invalidate(ctx context.Context, key string) error
}

type BankClient interface {
	ExchangeCode(ctx context.Context, code string, redirectURI string) (TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (TokenSet, error)
	ListAccounts(ctx context.Context, accessToken string, includeClosed bool) ([]Account, error)
	ListContainers(ctx context.Context, accessToken string) ([]Container, error)
	RegisterWebhook(ctx context.Context, accessToken string, accountID string, callbackURL string) (string, error)
	DepositToContainer(ctx context.Context, req DepositRequest) (Container, error)
}

type OAuthStateStore interface {
	Save(ctx context.Context, record OAuthStateRecord) error
	Consume(ctx context.Context, state string) (OAuthStateRecord, error)
}

type Signer interface {
	Sign(ctx context.Context, req *TransportRequest, accessToken string) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type TransportRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Query       map[string]string
	Body        []byte
	Metadata    map[string]any
	Timeout     time.Duration
	Idempotency string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	Surface  string
	Method   string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundHandler interface {
	Surface() string
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
