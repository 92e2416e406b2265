package command

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-roundup/core"
)

func TestHandleTransactionCommand_DelegatesAndStoresOutcome(t *testing.T) {
	body := []byte(`{"type":"transaction.created"}`)
	svc := stubRoundUpService{
		handleTransactionFn: func(_ context.Context, got []byte) (core.Outcome, error) {
			if string(got) != string(body) {
				t.Fatalf("unexpected body %q", string(got))
			}
			return core.Outcome{Transferred: true, TransactionID: "tx_1", Amount: 30}, nil
		},
	}

	collector := gocmd.NewResult[core.Outcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewHandleTransactionCommand(svc).Execute(ctx, HandleTransactionMessage{Body: body}); err != nil {
		t.Fatalf("execute handle transaction: %v", err)
	}
	outcome, ok := collector.Load()
	if !ok {
		t.Fatalf("expected outcome to be stored")
	}
	if !outcome.Transferred || outcome.Amount != 30 {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestCredentialCommands_DelegateToService(t *testing.T) {
	t.Run("exchange", func(t *testing.T) {
		svc := stubRoundUpService{
			exchangeAuthCodeFn: func(_ context.Context, code string, redirectURI string) (core.UserConfig, error) {
				if code != "code_1" || redirectURI != "https://example.com/login" {
					t.Fatalf("unexpected exchange payload: %q %q", code, redirectURI)
				}
				return core.UserConfig{UserID: "user_1", AccessToken: "access_1", RefreshToken: "refresh_1"}, nil
			},
		}
		collector := gocmd.NewResult[core.UserConfig]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := NewExchangeAuthCodeCommand(svc).Execute(ctx, ExchangeAuthCodeMessage{
			Code:        "code_1",
			RedirectURI: "https://example.com/login",
		})
		if err != nil {
			t.Fatalf("execute exchange: %v", err)
		}
		user, ok := collector.Load()
		if !ok || user.UserID != "user_1" {
			t.Fatalf("unexpected stored user: %#v", user)
		}
	})

	t.Run("refresh error passes through", func(t *testing.T) {
		refreshErr := core.NewBankError(nil, core.ServiceErrorAuthRefreshFailed, "refresh rejected", http.StatusUnauthorized)
		svc := stubRoundUpService{
			refreshAuthTokenFn: func(context.Context, string) (core.UserConfig, error) {
				return core.UserConfig{}, refreshErr
			},
		}
		err := NewRefreshAuthTokenCommand(svc).Execute(context.Background(), RefreshAuthTokenMessage{UserID: "user_1"})
		if !core.IsTextCode(err, core.ServiceErrorAuthRefreshFailed) {
			t.Fatalf("expected refresh failure code, got %v", err)
		}
	})
}

func TestEnsureWebhookCommand_StoresResult(t *testing.T) {
	svc := stubRoundUpService{
		ensureWebhookFn: func(_ context.Context, userID string) (string, bool, error) {
			if userID != "user_1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return "webhook_1", false, nil
		},
	}
	collector := gocmd.NewResult[EnsureWebhookResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewEnsureWebhookCommand(svc).Execute(ctx, EnsureWebhookMessage{UserID: "user_1"}); err != nil {
		t.Fatalf("execute ensure webhook: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected webhook result")
	}
	if result.WebhookID != "webhook_1" || result.Created {
		t.Fatalf("unexpected webhook result: %#v", result)
	}
}

func TestConfirmSetupCommand_DelegatesRequest(t *testing.T) {
	req := core.SetupRequest{UserID: "user_1", AccessToken: "access_1", AccountID: "acc_1", ContainerID: "pot_1"}
	svc := stubRoundUpService{
		confirmSetupFn: func(_ context.Context, got core.SetupRequest) (core.SetupResult, error) {
			if got != req {
				t.Fatalf("unexpected setup request: %#v", got)
			}
			return core.SetupResult{WebhookID: "webhook_1", WebhookCreated: true}, nil
		},
	}
	collector := gocmd.NewResult[core.SetupResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewConfirmSetupCommand(svc).Execute(ctx, ConfirmSetupMessage{Request: req}); err != nil {
		t.Fatalf("execute confirm setup: %v", err)
	}
	result, _ := collector.Load()
	if result.Message() != "webhook created" {
		t.Fatalf("unexpected setup result: %#v", result)
	}
}

func TestMessages_ValidateReturnsRichErrors(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
	}{
		{name: "exchange", msg: ExchangeAuthCodeMessage{}},
		{name: "refresh", msg: RefreshAuthTokenMessage{UserID: "  "}},
		{name: "ensure webhook", msg: EnsureWebhookMessage{}},
		{name: "confirm setup", msg: ConfirmSetupMessage{Request: core.SetupRequest{UserID: "user_1"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.TextCode != core.ServiceErrorBadInput {
				t.Fatalf("expected %q text code, got %q", core.ServiceErrorBadInput, rich.TextCode)
			}
			if rich.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rich.Code)
			}
		})
	}
	if err := (HandleTransactionMessage{}).Validate(); err != nil {
		t.Fatalf("expected empty transaction body to validate, got %v", err)
	}
}

func TestCommands_NilServiceReturnsRichError(t *testing.T) {
	var cmd *EnsureWebhookCommand
	err := cmd.Execute(context.Background(), EnsureWebhookMessage{UserID: "user_1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type stubRoundUpService struct {
	handleTransactionFn func(context.Context, []byte) (core.Outcome, error)
	exchangeAuthCodeFn  func(context.Context, string, string) (core.UserConfig, error)
	refreshAuthTokenFn  func(context.Context, string) (core.UserConfig, error)
	ensureWebhookFn     func(context.Context, string) (string, bool, error)
	confirmSetupFn      func(context.Context, core.SetupRequest) (core.SetupResult, error)
}

func (s stubRoundUpService) HandleTransaction(ctx context.Context, body []byte) (core.Outcome, error) {
	if s.handleTransactionFn == nil {
		return core.Outcome{}, fmt.Errorf("handle transaction not configured")
	}
	return s.handleTransactionFn(ctx, body)
}

func (s stubRoundUpService) ExchangeAuthCode(ctx context.Context, code string, redirectURI string) (core.UserConfig, error) {
	if s.exchangeAuthCodeFn == nil {
		return core.UserConfig{}, fmt.Errorf("exchange not configured")
	}
	return s.exchangeAuthCodeFn(ctx, code, redirectURI)
}

func (s stubRoundUpService) RefreshAuthToken(ctx context.Context, userID string) (core.UserConfig, error) {
	if s.refreshAuthTokenFn == nil {
		return core.UserConfig{}, fmt.Errorf("refresh not configured")
	}
	return s.refreshAuthTokenFn(ctx, userID)
}

func (s stubRoundUpService) EnsureWebhook(ctx context.Context, userID string) (string, bool, error) {
	if s.ensureWebhookFn == nil {
		return "", false, fmt.Errorf("ensure webhook not configured")
	}
	return s.ensureWebhookFn(ctx, userID)
}

func (s stubRoundUpService) ConfirmSetup(ctx context.Context, req core.SetupRequest) (core.SetupResult, error) {
	if s.confirmSetupFn == nil {
		return core.SetupResult{}, fmt.Errorf("confirm setup not configured")
	}
	return s.confirmSetupFn(ctx, req)
}

var _ RoundUpService = stubRoundUpService{}
var _ RoundUpService = (*core.Service)(nil)
