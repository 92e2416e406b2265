package core

import (
	"context"
	"testing"
)

func TestWebhookRegistrar_AlreadyRegisteredSkipsBank(t *testing.T) {
	bank := &fakeBank{}
	store, err := NewConfigStore(NewMemoryDocumentStore(), nil, "", 0)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	registrar, err := NewWebhookRegistrar(bank, store, "https://roundup.example/webhook")
	if err != nil {
		t.Fatalf("new registrar: %v", err)
	}
	user := linkedUser()
	user.WebhookID = "webhook_existing"

	id, created, err := registrar.Ensure(context.Background(), user)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if created || id != "" {
		t.Fatalf("expected no-op, got id=%q created=%v", id, created)
	}
	if bank.webhookCalls != 0 {
		t.Fatalf("expected no registration call")
	}
}

func TestWebhookRegistrar_MissingLink(t *testing.T) {
	bank := &fakeBank{}
	store, _ := NewConfigStore(NewMemoryDocumentStore(), nil, "", 0)
	registrar, _ := NewWebhookRegistrar(bank, store, "https://roundup.example/webhook")

	for _, user := range []UserConfig{
		{UserID: "user_1", AccessToken: "access_1"},
		{UserID: "user_1", AccountID: "acc_1"},
	} {
		_, _, err := registrar.Ensure(context.Background(), user)
		if !IsTextCode(err, ServiceErrorMissingLink) {
			t.Fatalf("expected missing link error for %+v, got %v", user, err)
		}
	}
	if bank.webhookCalls != 0 {
		t.Fatalf("expected no registration call")
	}
}

func TestWebhookRegistrar_RegistersAndPersists(t *testing.T) {
	bank := &fakeBank{webhookID: "webhook_new"}
	store, _ := NewConfigStore(NewMemoryDocumentStore(), nil, "", 0)
	registrar, _ := NewWebhookRegistrar(bank, store, "https://roundup.example/webhook")

	id, created, err := registrar.Ensure(context.Background(), linkedUser())
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !created || id != "webhook_new" {
		t.Fatalf("expected created webhook_new, got id=%q created=%v", id, created)
	}
	stored, err := store.GetUser(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.WebhookID != "webhook_new" {
		t.Fatalf("expected webhook id persisted, got %+v", stored)
	}

	id, created, err = registrar.Ensure(context.Background(), stored)
	if err != nil || created || id != "" {
		t.Fatalf("expected second ensure to be a no-op, got id=%q created=%v err=%v", id, created, err)
	}
	if bank.webhookCalls != 1 {
		t.Fatalf("expected exactly one registration, got %d", bank.webhookCalls)
	}
}
