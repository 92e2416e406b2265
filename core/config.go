package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultDocumentID = "monzo-penny-pot"

	defaultBankAuthURL       = "https://auth.monzo.com/"
	defaultBankAPIURL        = "https://api.monzo.com"
	defaultRequestTimeout    = 15 * time.Second
	defaultCacheTTL          = 10 * time.Minute
	defaultMaxWriteAttempts  = 3
	defaultOAuthStateTTL     = 15 * time.Minute
	defaultEligibleSchemeSet = SchemeMastercard
)

type BankConfig struct {
	AuthURL            string        `koanf:"auth_url" mapstructure:"auth_url"`
	APIURL             string        `koanf:"api_url" mapstructure:"api_url"`
	ClientID           string        `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret       string        `koanf:"client_secret" mapstructure:"client_secret"`
	ClientSecretInBody bool          `koanf:"client_secret_in_body" mapstructure:"client_secret_in_body"`
	RedirectURL        string        `koanf:"redirect_url" mapstructure:"redirect_url"`
	WebhookURL         string        `koanf:"webhook_url" mapstructure:"webhook_url"`
	RequestTimeout     time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
}

type StoreConfig struct {
	DocumentID       string        `koanf:"document_id" mapstructure:"document_id"`
	CacheTTL         time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
	MaxWriteAttempts int           `koanf:"max_write_attempts" mapstructure:"max_write_attempts"`
}

type RoundUpConfig struct {
	EligibleSchemes []string `koanf:"eligible_schemes" mapstructure:"eligible_schemes"`
}

type OAuthConfig struct {
	RequireState bool          `koanf:"require_state" mapstructure:"require_state"`
	StateTTL     time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Bank        BankConfig    `koanf:"bank" mapstructure:"bank"`
	Store       StoreConfig   `koanf:"store" mapstructure:"store"`
	RoundUp     RoundUpConfig `koanf:"roundup" mapstructure:"roundup"`
	OAuth       OAuthConfig   `koanf:"oauth" mapstructure:"oauth"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "roundup",
		Bank: BankConfig{
			AuthURL:        defaultBankAuthURL,
			APIURL:         defaultBankAPIURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Store: StoreConfig{
			DocumentID:       DefaultDocumentID,
			CacheTTL:         defaultCacheTTL,
			MaxWriteAttempts: defaultMaxWriteAttempts,
		},
		RoundUp: RoundUpConfig{
			EligibleSchemes: []string{defaultEligibleSchemeSet},
		},
		OAuth: OAuthConfig{
			StateTTL: defaultOAuthStateTTL,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Store.DocumentID) == "" {
		return fmt.Errorf("core: store.document_id is required")
	}
	if c.Store.MaxWriteAttempts < 0 {
		return fmt.Errorf("core: store.max_write_attempts must not be negative")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{name: "bank.auth_url", value: c.Bank.AuthURL},
		{name: "bank.api_url", value: c.Bank.APIURL},
		{name: "bank.redirect_url", value: c.Bank.RedirectURL},
		{name: "bank.webhook_url", value: c.Bank.WebhookURL},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		parsed, err := url.Parse(strings.TrimSpace(field.value))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: %s is invalid: %q", field.name, field.value)
		}
	}
	return nil
}

// EligibleScheme reports whether a transaction scheme counts as a card purchase.
func (c Config) EligibleScheme(scheme string) bool {
	scheme = strings.TrimSpace(strings.ToLower(scheme))
	if scheme == "" {
		return false
	}
	schemes := c.RoundUp.EligibleSchemes
	if len(schemes) == 0 {
		schemes = []string{defaultEligibleSchemeSet}
	}
	for _, candidate := range schemes {
		if strings.TrimSpace(strings.ToLower(candidate)) == scheme {
			return true
		}
	}
	return false
}
