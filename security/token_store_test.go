package security

import (
	"context"
	"testing"

	"github.com/goliatone/go-roundup/core"
)

func newSealingStore(t *testing.T) (*TokenSealingStore, *core.MemoryDocumentStore) {
	t.Helper()
	provider, err := NewAppKeySecretProviderFromString("roundup-test-key")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	backing := core.NewMemoryDocumentStore()
	store, err := NewTokenSealingStore(backing, provider)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, backing
}

func TestTokenSealingStore_SealsTokensAtRest(t *testing.T) {
	store, backing := newSealingStore(t)
	ctx := context.Background()

	doc := core.ConfigDocument{ID: "config", Value: core.StoredConfig{
		"user_1": {UserID: "user_1", AccountID: "acc_1", AccessToken: "access_1", RefreshToken: "refresh_1"},
	}}
	written, err := store.CompareAndPut(ctx, doc, 0)
	if err != nil {
		t.Fatalf("compare and put: %v", err)
	}
	if written.Value["user_1"].AccessToken != "access_1" {
		t.Fatalf("expected caller to see plaintext, got %q", written.Value["user_1"].AccessToken)
	}

	raw, found, err := backing.Get(ctx, "config")
	if err != nil || !found {
		t.Fatalf("backing get: found=%v err=%v", found, err)
	}
	user := raw.Value["user_1"]
	if !IsSealed(user.AccessToken) || !IsSealed(user.RefreshToken) {
		t.Fatalf("expected sealed tokens at rest, got %+v", user)
	}
	if user.AccountID != "acc_1" {
		t.Fatalf("expected non-secret fields untouched, got %q", user.AccountID)
	}

	loaded, found, err := store.Get(ctx, "config")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if loaded.Value["user_1"].AccessToken != "access_1" || loaded.Value["user_1"].RefreshToken != "refresh_1" {
		t.Fatalf("expected opened tokens, got %+v", loaded.Value["user_1"])
	}
	if loaded.Version != written.Version {
		t.Fatalf("expected version %d, got %d", written.Version, loaded.Version)
	}
}

func TestTokenSealingStore_ReadsLegacyPlaintext(t *testing.T) {
	store, backing := newSealingStore(t)
	ctx := context.Background()

	if _, err := backing.Put(ctx, core.ConfigDocument{ID: "config", Value: core.StoredConfig{
		"user_1": {UserID: "user_1", AccessToken: "legacy_access"},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	loaded, _, err := store.Get(ctx, "config")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Value["user_1"].AccessToken != "legacy_access" {
		t.Fatalf("expected plaintext passthrough, got %q", loaded.Value["user_1"].AccessToken)
	}
	if loaded.Value["user_1"].RefreshToken != "" {
		t.Fatalf("expected empty refresh token to stay empty")
	}
}

func TestTokenSealingStore_PropagatesVersionConflict(t *testing.T) {
	store, _ := newSealingStore(t)
	ctx := context.Background()
	doc := core.ConfigDocument{ID: "config", Value: core.StoredConfig{"user_1": {UserID: "user_1"}}}
	if _, err := store.CompareAndPut(ctx, doc, 0); err != nil {
		t.Fatalf("first write: %v", err)
	}
	_, err := store.CompareAndPut(ctx, doc, 0)
	if !core.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestTokenSealingStore_RequiresDependencies(t *testing.T) {
	if _, err := NewTokenSealingStore(nil, nil); err == nil {
		t.Fatalf("expected missing store error")
	}
	if _, err := NewTokenSealingStore(core.NewMemoryDocumentStore(), nil); err == nil {
		t.Fatalf("expected missing provider error")
	}
}
