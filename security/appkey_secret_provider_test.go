package security

import (
	"bytes"
	"context"
	"testing"
)

func TestAppKeySecretProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("roundup-test-key", WithKeyID("roundup-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	plaintext := []byte("access_token_123")
	encrypted, err := provider.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatalf("expected ciphertext not to contain plaintext")
	}
	if !IsSealed(string(encrypted)) {
		t.Fatalf("expected envelope prefix, got %q", encrypted)
	}

	meta, err := ParseEnvelopeMetadata(encrypted)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta.KeyID != "roundup-v1" || meta.Version != 3 || meta.Algorithm != envelopeAlgorithm {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	decrypted, err := provider.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}
}

func TestAppKeySecretProvider_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewAppKeySecretProviderFromString("roundup-test-key", WithKeyID("roundup-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer provider: %v", err)
	}
	receiver, err := NewAppKeySecretProviderFromString("roundup-test-key", WithKeyID("roundup-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver provider: %v", err)
	}

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
}

func TestAppKeySecretProvider_RejectsWrongKey(t *testing.T) {
	issuer, err := NewAppKeySecretProviderFromString("key-one")
	if err != nil {
		t.Fatalf("new issuer provider: %v", err)
	}
	receiver, err := NewAppKeySecretProviderFromString("key-two")
	if err != nil {
		t.Fatalf("new receiver provider: %v", err)
	}
	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected authentication failure with a different key")
	}
}

func TestAppKeySecretProvider_Validation(t *testing.T) {
	if _, err := NewAppKeySecretProviderFromString("   "); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
	provider, err := NewAppKeySecretProviderFromString("roundup-test-key")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.Encrypt(context.Background(), nil); err == nil {
		t.Fatalf("expected empty plaintext to be rejected")
	}
	if _, err := provider.Decrypt(context.Background(), []byte("plain")); err == nil {
		t.Fatalf("expected unprefixed ciphertext to be rejected")
	}
	if provider.KeyID() != "roundup-app-key" || provider.Version() != 1 {
		t.Fatalf("unexpected defaults: %q %d", provider.KeyID(), provider.Version())
	}
}
