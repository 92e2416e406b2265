package security

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-roundup/core"
)

// TokenSealingStore wraps a DocumentStore and keeps OAuth tokens encrypted at rest.
// Documents are sealed on write and opened on read; values written before
// sealing was enabled are returned as-is and sealed on their next write.
type TokenSealingStore struct {
	next     core.DocumentStore
	provider SecretProvider
}

func NewTokenSealingStore(next core.DocumentStore, provider SecretProvider) (*TokenSealingStore, error) {
	if next == nil {
		return nil, fmt.Errorf("security: document store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("security: secret provider is required")
	}
	return &TokenSealingStore{next: next, provider: provider}, nil
}

func (s *TokenSealingStore) Get(ctx context.Context, id string) (core.ConfigDocument, bool, error) {
	doc, found, err := s.next.Get(ctx, id)
	if err != nil || !found {
		return doc, found, err
	}
	opened, err := s.open(ctx, doc)
	if err != nil {
		return core.ConfigDocument{}, false, err
	}
	return opened, true, nil
}

func (s *TokenSealingStore) Put(ctx context.Context, doc core.ConfigDocument) (core.ConfigDocument, error) {
	sealed, err := s.seal(ctx, doc)
	if err != nil {
		return core.ConfigDocument{}, err
	}
	stored, err := s.next.Put(ctx, sealed)
	if err != nil {
		return core.ConfigDocument{}, err
	}
	return withValue(stored, doc.Value), nil
}

func (s *TokenSealingStore) CompareAndPut(ctx context.Context, doc core.ConfigDocument, expectedVersion int64) (core.ConfigDocument, error) {
	sealed, err := s.seal(ctx, doc)
	if err != nil {
		return core.ConfigDocument{}, err
	}
	stored, err := s.next.CompareAndPut(ctx, sealed, expectedVersion)
	if err != nil {
		return core.ConfigDocument{}, err
	}
	return withValue(stored, doc.Value), nil
}

func (s *TokenSealingStore) seal(ctx context.Context, doc core.ConfigDocument) (core.ConfigDocument, error) {
	out := doc.Clone()
	out.Value = make(core.StoredConfig, len(doc.Value))
	for userID, user := range doc.Value {
		access, err := s.sealValue(ctx, user.AccessToken)
		if err != nil {
			return core.ConfigDocument{}, fmt.Errorf("security: seal access token for %s: %w", userID, err)
		}
		refresh, err := s.sealValue(ctx, user.RefreshToken)
		if err != nil {
			return core.ConfigDocument{}, fmt.Errorf("security: seal refresh token for %s: %w", userID, err)
		}
		user.AccessToken = access
		user.RefreshToken = refresh
		out.Value[userID] = user
	}
	return out, nil
}

func (s *TokenSealingStore) open(ctx context.Context, doc core.ConfigDocument) (core.ConfigDocument, error) {
	out := doc.Clone()
	out.Value = make(core.StoredConfig, len(doc.Value))
	for userID, user := range doc.Value {
		access, err := s.openValue(ctx, user.AccessToken)
		if err != nil {
			return core.ConfigDocument{}, fmt.Errorf("security: open access token for %s: %w", userID, err)
		}
		refresh, err := s.openValue(ctx, user.RefreshToken)
		if err != nil {
			return core.ConfigDocument{}, fmt.Errorf("security: open refresh token for %s: %w", userID, err)
		}
		user.AccessToken = access
		user.RefreshToken = refresh
		out.Value[userID] = user
	}
	return out, nil
}

func (s *TokenSealingStore) sealValue(ctx context.Context, value string) (string, error) {
	if strings.TrimSpace(value) == "" || IsSealed(value) {
		return value, nil
	}
	sealed, err := s.provider.Encrypt(ctx, []byte(value))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

func (s *TokenSealingStore) openValue(ctx context.Context, value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	plain, err := s.provider.Decrypt(ctx, []byte(value))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func withValue(doc core.ConfigDocument, value core.StoredConfig) core.ConfigDocument {
	doc.Value = value.Clone()
	return doc
}

var _ core.DocumentStore = (*TokenSealingStore)(nil)
