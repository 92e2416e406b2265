package core

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

const (
	EventTypeTransactionCreated = "transaction.created"

	SchemeMastercard   = "mastercard"
	SchemeP2PPayment   = "p2p_payment"
	SchemeUKRetailPot  = "uk_retail_pot"
	AccountTypePrepaid = "uk_prepaid"
	AccountTypeRetail  = "uk_retail"
)

// UserConfig is the persisted state for one bank user. Empty strings mean the
// field has not been populated yet.
type UserConfig struct {
	UserID       string `json:"userId"`
	AccountID    string `json:"accountId,omitempty"`
	ContainerID  string `json:"potId,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	WebhookID    string `json:"webhookId,omitempty"`
}

func (u UserConfig) HasTokens() bool {
	return strings.TrimSpace(u.AccessToken) != "" && strings.TrimSpace(u.RefreshToken) != ""
}

func (u UserConfig) IsLinked() bool {
	return strings.TrimSpace(u.AccountID) != "" && strings.TrimSpace(u.ContainerID) != ""
}

func (u UserConfig) HasWebhook() bool {
	return strings.TrimSpace(u.WebhookID) != ""
}

// StoredConfig is the whole persisted document, keyed by the bank user id.
type StoredConfig map[string]UserConfig

func (c StoredConfig) Clone() StoredConfig {
	out := make(StoredConfig, len(c))
	for key, value := range c {
		out[key] = value
	}
	return out
}

// UserIDs returns the stored keys in a stable order.
func (c StoredConfig) UserIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type ConfigDocument struct {
	ID        string
	Value     StoredConfig
	Version   int64
	UpdatedAt time.Time
}

func (d ConfigDocument) Clone() ConfigDocument {
	cloned := d
	if d.Value == nil {
		cloned.Value = StoredConfig{}
	} else {
		cloned.Value = d.Value.Clone()
	}
	return cloned
}

type TokenSet struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ClientID     string
	ExpiresIn    int64
}

type Account struct {
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	Closed        bool      `json:"closed"`
	Created       time.Time `json:"created"`
	AccountNumber string    `json:"account_number,omitempty"`
	SortCode      string    `json:"sort_code,omitempty"`
}

// Container is a savings pot held inside an account.
type Container struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Style    string    `json:"style"`
	Balance  int64     `json:"balance"`
	Currency string    `json:"currency"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	Deleted  bool      `json:"deleted"`
}

type DepositRequest struct {
	AccessToken string
	AccountID   string
	ContainerID string
	Amount      int64
	DedupeKey   string
}

type Transaction struct {
	ID            string            `json:"id"`
	Created       time.Time         `json:"created"`
	Description   string            `json:"description"`
	AccountID     string            `json:"account_id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	LocalAmount   int64             `json:"local_amount"`
	LocalCurrency string            `json:"local_currency"`
	Category      string            `json:"category"`
	Scheme        string            `json:"scheme"`
	Notes         string            `json:"notes"`
	DedupeID      string            `json:"dedupe_id"`
	Metadata      map[string]string `json:"metadata"`
	Merchant      json.RawMessage   `json:"merchant,omitempty"`
}

// TransactionEvent is the decoded webhook body.
type TransactionEvent struct {
	Type string      `json:"type"`
	Data Transaction `json:"data"`
}

type Outcome struct {
	Transferred   bool
	Reason        string
	TransactionID string
	UserID        string
	Amount        int64
	DedupeKey     string
	Container     Container
}

type LoginRedirect struct {
	URL   string
	State string
}

// SetupPage is the data handed to the setup page renderer after a successful
// authorization callback.
type SetupPage struct {
	UserID      string
	AccessToken string
	Accounts    []Account
	Containers  []Container
}

type SetupRequest struct {
	UserID      string
	AccessToken string
	AccountID   string
	ContainerID string
}

type SetupResult struct {
	User           UserConfig
	WebhookID      string
	WebhookCreated bool
}

func (r SetupResult) Message() string {
	if r.WebhookCreated {
		return "webhook created"
	}
	return "webhook already exists"
}
