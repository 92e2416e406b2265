package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-roundup/core"
)

type RoundUpService interface {
	HandleTransaction(ctx context.Context, body []byte) (core.Outcome, error)
	ExchangeAuthCode(ctx context.Context, code string, redirectURI string) (core.UserConfig, error)
	RefreshAuthToken(ctx context.Context, userID string) (core.UserConfig, error)
	EnsureWebhook(ctx context.Context, userID string) (string, bool, error)
	ConfirmSetup(ctx context.Context, req core.SetupRequest) (core.SetupResult, error)
}

// EnsureWebhookResult is stored in the result collector by EnsureWebhookCommand.
type EnsureWebhookResult struct {
	WebhookID string
	Created   bool
}

type HandleTransactionCommand struct {
	service RoundUpService
}

func NewHandleTransactionCommand(service RoundUpService) *HandleTransactionCommand {
	return &HandleTransactionCommand{service: service}
}

func (c *HandleTransactionCommand) Execute(ctx context.Context, msg HandleTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: round-up service is required")
	}
	out, err := c.service.HandleTransaction(ctx, msg.Body)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExchangeAuthCodeCommand struct {
	service RoundUpService
}

func NewExchangeAuthCodeCommand(service RoundUpService) *ExchangeAuthCodeCommand {
	return &ExchangeAuthCodeCommand{service: service}
}

func (c *ExchangeAuthCodeCommand) Execute(ctx context.Context, msg ExchangeAuthCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.ExchangeAuthCode(ctx, msg.Code, msg.RedirectURI)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshAuthTokenCommand struct {
	service RoundUpService
}

func NewRefreshAuthTokenCommand(service RoundUpService) *RefreshAuthTokenCommand {
	return &RefreshAuthTokenCommand{service: service}
}

func (c *RefreshAuthTokenCommand) Execute(ctx context.Context, msg RefreshAuthTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.RefreshAuthToken(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnsureWebhookCommand struct {
	service RoundUpService
}

func NewEnsureWebhookCommand(service RoundUpService) *EnsureWebhookCommand {
	return &EnsureWebhookCommand{service: service}
}

func (c *EnsureWebhookCommand) Execute(ctx context.Context, msg EnsureWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	webhookID, created, err := c.service.EnsureWebhook(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, EnsureWebhookResult{WebhookID: webhookID, Created: created})
	return nil
}

type ConfirmSetupCommand struct {
	service RoundUpService
}

func NewConfirmSetupCommand(service RoundUpService) *ConfirmSetupCommand {
	return &ConfirmSetupCommand{service: service}
}

func (c *ConfirmSetupCommand) Execute(ctx context.Context, msg ConfirmSetupMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: setup service is required")
	}
	out, err := c.service.ConfirmSetup(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

var (
	_ gocmd.Commander[HandleTransactionMessage] = (*HandleTransactionCommand)(nil)
	_ gocmd.Commander[ExchangeAuthCodeMessage]  = (*ExchangeAuthCodeCommand)(nil)
	_ gocmd.Commander[RefreshAuthTokenMessage]  = (*RefreshAuthTokenCommand)(nil)
	_ gocmd.Commander[EnsureWebhookMessage]     = (*EnsureWebhookCommand)(nil)
	_ gocmd.Commander[ConfirmSetupMessage]      = (*ConfirmSetupCommand)(nil)
)
