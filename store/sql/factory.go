package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-roundup/core"
	"github.com/goliatone/go-roundup/webhooks"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ClientConfig satisfies the go-persistence-bun configuration contract.
type ClientConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c ClientConfig) GetDebug() bool {
	return c.Debug
}

func (c ClientConfig) GetDriver() string {
	return c.Driver
}

func (c ClientConfig) GetServer() string {
	return c.DSN
}

func (c ClientConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c ClientConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-roundup"
	}
	return c.OtelIdentifier
}

// OpenClient opens the database for cfg.Driver and wraps it in a persistence
// client. Migrations registered on the returned client run on Migrate.
func OpenClient(cfg ClientConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(strings.ToLower(cfg.Driver))
	var dialect schema.Dialect
	switch driver {
	case DriverSQLite, "sqlite":
		driver = DriverSQLite
		dialect = sqlitedialect.New()
	case DriverPostgres, "pg", "postgresql":
		driver = DriverPostgres
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	cfg.Driver = driver

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}

// Migrate registers the dialect's migration tree on client and applies it.
func Migrate(ctx context.Context, client *persistence.Client, migrations fs.FS) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	if migrations == nil {
		return fmt.Errorf("sqlstore: migrations filesystem is required")
	}
	client.RegisterSQLMigrations(migrations)
	return client.Migrate(ctx)
}

type Stores struct {
	db         *bun.DB
	documents  *DocumentStore
	deliveries *WebhookDeliveryStore
}

func NewStoresFromPersistence(client *persistence.Client) (*Stores, error) {
	return NewStores(client)
}

func NewStores(persistenceClient any) (*Stores, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	documents, err := NewDocumentStore(db)
	if err != nil {
		return nil, err
	}
	deliveries, err := NewWebhookDeliveryStore(db)
	if err != nil {
		return nil, err
	}
	return &Stores{db: db, documents: documents, deliveries: deliveries}, nil
}

func (s *Stores) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Stores) Documents() core.DocumentStore {
	if s == nil {
		return nil
	}
	return s.documents
}

func (s *Stores) Deliveries() webhooks.DeliveryLedger {
	if s == nil {
		return nil
	}
	return s.deliveries
}

func (s *Stores) DeliveryStore() *WebhookDeliveryStore {
	if s == nil {
		return nil
	}
	return s.deliveries
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.DocumentStore = (*DocumentStore)(nil)
