package command

import (
	"strings"

	"github.com/goliatone/go-roundup/core"
)

const (
	TypeHandleTransaction = "roundup.command.transaction.handle"
	TypeExchangeAuthCode  = "roundup.command.auth.exchange"
	TypeRefreshAuthToken  = "roundup.command.auth.refresh"
	TypeEnsureWebhook     = "roundup.command.webhook.ensure"
	TypeConfirmSetup      = "roundup.command.setup.confirm"
)

type HandleTransactionMessage struct {
	Body []byte
}

func (HandleTransactionMessage) Type() string { return TypeHandleTransaction }

// Validate accepts any body. Malformed notifications are reported by the
// engine as a no-op outcome rather than a failure.
func (HandleTransactionMessage) Validate() error {
	return nil
}

type ExchangeAuthCodeMessage struct {
	Code        string
	RedirectURI string
}

func (ExchangeAuthCodeMessage) Type() string { return TypeExchangeAuthCode }

func (m ExchangeAuthCodeMessage) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

type RefreshAuthTokenMessage struct {
	UserID string
}

func (RefreshAuthTokenMessage) Type() string { return TypeRefreshAuthToken }

func (m RefreshAuthTokenMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("userId", "user id is required")
	}
	return nil
}

type EnsureWebhookMessage struct {
	UserID string
}

func (EnsureWebhookMessage) Type() string { return TypeEnsureWebhook }

func (m EnsureWebhookMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("userId", "user id is required")
	}
	return nil
}

type ConfirmSetupMessage struct {
	Request core.SetupRequest
}

func (ConfirmSetupMessage) Type() string { return TypeConfirmSetup }

func (m ConfirmSetupMessage) Validate() error {
	return m.Request.Validate()
}
