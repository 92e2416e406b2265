package core

import (
	"context"
	"fmt"
	"strings"
)

type WebhookRegistrar struct {
	bank        BankClient
	store       *ConfigStore
	callbackURL string
}

func NewWebhookRegistrar(bank BankClient, store *ConfigStore, callbackURL string) (*WebhookRegistrar, error) {
	if bank == nil {
		return nil, fmt.Errorf("core: bank client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("core: config store is required")
	}
	return &WebhookRegistrar{
		bank:        bank,
		store:       store,
		callbackURL: strings.TrimSpace(callbackURL),
	}, nil
}

// Ensure registers the transaction webhook for a linked user once. It returns
// created=false without calling the bank when a webhook id is already stored.
func (r *WebhookRegistrar) Ensure(ctx context.Context, user UserConfig) (string, bool, error) {
	missing := []string{}
	if strings.TrimSpace(user.AccountID) == "" {
		missing = append(missing, "account_id")
	}
	if strings.TrimSpace(user.AccessToken) == "" {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		return "", false, NewMissingLinkError(user.UserID, missing...)
	}
	if user.HasWebhook() {
		return "", false, nil
	}
	if r.callbackURL == "" {
		return "", false, fmt.Errorf("core: webhook callback url is required")
	}

	webhookID, err := r.bank.RegisterWebhook(ctx, user.AccessToken, user.AccountID, r.callbackURL)
	if err != nil {
		return "", false, err
	}
	if _, err := r.store.UpdateUser(ctx, user.UserID, func(current *UserConfig) error {
		current.WebhookID = webhookID
		return nil
	}); err != nil {
		return "", false, err
	}
	return webhookID, true, nil
}
