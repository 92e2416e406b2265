package core

import (
	"context"
	"fmt"
	"strings"
)

// CredentialManager keeps the stored token pair in step with the bank.
type CredentialManager struct {
	bank  BankClient
	store *ConfigStore
}

func NewCredentialManager(bank BankClient, store *ConfigStore) (*CredentialManager, error) {
	if bank == nil {
		return nil, fmt.Errorf("core: bank client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("core: config store is required")
	}
	return &CredentialManager{bank: bank, store: store}, nil
}

// ExchangeAuthCode trades a single-use authorization code for tokens and stores
// them under the user id the bank returns. Other fields of an existing record
// are kept.
func (m *CredentialManager) ExchangeAuthCode(ctx context.Context, code string, redirectURI string) (UserConfig, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return UserConfig{}, fmt.Errorf("core: authorization code is required")
	}
	tokens, err := m.bank.ExchangeCode(ctx, code, strings.TrimSpace(redirectURI))
	if err != nil {
		return UserConfig{}, err
	}
	return m.storeTokens(ctx, tokens.UserID, tokens)
}

// RefreshAuthToken fails with ROUNDUP_UNKNOWN_USER before calling the bank when
// no refresh token is on file.
func (m *CredentialManager) RefreshAuthToken(ctx context.Context, userID string) (UserConfig, error) {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return UserConfig{}, err
	}
	if strings.TrimSpace(user.RefreshToken) == "" {
		return UserConfig{}, NewUnknownUserError(user.UserID)
	}
	tokens, err := m.bank.Refresh(ctx, user.RefreshToken)
	if err != nil {
		return UserConfig{}, err
	}
	return m.storeTokens(ctx, user.UserID, tokens)
}

func (m *CredentialManager) storeTokens(ctx context.Context, userID string, tokens TokenSet) (UserConfig, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserConfig{}, fmt.Errorf("core: token response user id is required")
	}
	if strings.TrimSpace(tokens.AccessToken) == "" || strings.TrimSpace(tokens.RefreshToken) == "" {
		return UserConfig{}, fmt.Errorf("core: token response requires both access and refresh tokens")
	}
	return m.store.UpdateUser(ctx, userID, func(user *UserConfig) error {
		user.AccessToken = tokens.AccessToken
		user.RefreshToken = tokens.RefreshToken
		return nil
	})
}
