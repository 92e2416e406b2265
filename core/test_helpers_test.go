package core

import (
	"context"
	"fmt"
	"sync"
)

type depositCall struct {
	req DepositRequest
}

type fakeBank struct {
	mu sync.Mutex

	exchangeTokens TokenSet
	exchangeErr    error
	refreshTokens  TokenSet
	refreshErr     error
	accounts       []Account
	containers     []Container
	listErr        error
	webhookID      string
	webhookErr     error
	depositErr     error

	exchangeCalls int
	refreshCalls  int
	listCalls     int
	webhookCalls  int
	deposits      []depositCall
	lastRedirect  string
}

func (b *fakeBank) ExchangeCode(_ context.Context, _ string, redirectURI string) (TokenSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchangeCalls++
	b.lastRedirect = redirectURI
	if b.exchangeErr != nil {
		return TokenSet{}, b.exchangeErr
	}
	return b.exchangeTokens, nil
}

func (b *fakeBank) Refresh(_ context.Context, refreshToken string) (TokenSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshCalls++
	if b.refreshErr != nil {
		return TokenSet{}, b.refreshErr
	}
	if b.refreshTokens.AccessToken == "" {
		return TokenSet{AccessToken: "access_" + refreshToken, RefreshToken: refreshToken + "_next"}, nil
	}
	return b.refreshTokens, nil
}

func (b *fakeBank) ListAccounts(context.Context, string, bool) ([]Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]Account(nil), b.accounts...), nil
}

func (b *fakeBank) ListContainers(context.Context, string) ([]Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]Container(nil), b.containers...), nil
}

func (b *fakeBank) RegisterWebhook(context.Context, string, string, string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.webhookCalls++
	if b.webhookErr != nil {
		return "", b.webhookErr
	}
	if b.webhookID == "" {
		return "webhook_1", nil
	}
	return b.webhookID, nil
}

func (b *fakeBank) DepositToContainer(_ context.Context, req DepositRequest) (Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deposits = append(b.deposits, depositCall{req: req})
	if b.depositErr != nil {
		return Container{}, b.depositErr
	}
	return Container{ID: req.ContainerID, Balance: req.Amount}, nil
}

func (b *fakeBank) depositCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deposits)
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Bank.ClientID = "client_1"
	cfg.Bank.ClientSecret = "secret_1"
	cfg.Bank.RedirectURL = "https://roundup.example/login"
	cfg.Bank.WebhookURL = "https://roundup.example/webhook"
	return cfg
}

func newTestService(bank *fakeBank, opts ...Option) (*Service, *MemoryDocumentStore, error) {
	documents := NewMemoryDocumentStore()
	all := append([]Option{
		WithBankClient(bank),
		WithDocumentStore(documents),
		WithConfigCache(NopConfigCache{}),
	}, opts...)
	svc, err := NewService(testConfig(), all...)
	if err != nil {
		return nil, nil, err
	}
	return svc, documents, nil
}

func seedUsers(store *MemoryDocumentStore, users ...UserConfig) error {
	cfg := StoredConfig{}
	for _, user := range users {
		cfg[user.UserID] = user
	}
	if _, err := store.Put(context.Background(), ConfigDocument{ID: DefaultDocumentID, Value: cfg}); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	return nil
}

func linkedUser() UserConfig {
	return UserConfig{
		UserID:       "user_1",
		AccountID:    "acc_1",
		ContainerID:  "pot_1",
		AccessToken:  "access_1",
		RefreshToken: "refresh_1",
	}
}
