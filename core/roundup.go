package core

import (
	"context"
	"fmt"
	"strings"
)

// ComputeRoundUp returns the minor units needed to bring abs(amount) up to the
// next multiple of 100.
func ComputeRoundUp(amount int64) int64 {
	magnitude := amount
	if magnitude < 0 {
		magnitude = -magnitude
	}
	return (100 - magnitude%100) % 100
}

// DedupeKey is sent with every deposit so a redelivered event collapses into a
// single transfer at the bank. It must stay stable for a given pair.
func DedupeKey(amount int64, transactionID string) string {
	return fmt.Sprintf("roundup-%s-%d", strings.TrimSpace(transactionID), amount)
}

type RoundUpEngine struct {
	store       *ConfigStore
	credentials *CredentialManager
	bank        BankClient
	eligible    func(scheme string) bool
}

func NewRoundUpEngine(store *ConfigStore, credentials *CredentialManager, bank BankClient, cfg Config) (*RoundUpEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("core: config store is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("core: credential manager is required")
	}
	if bank == nil {
		return nil, fmt.Errorf("core: bank client is required")
	}
	return &RoundUpEngine{
		store:       store,
		credentials: credentials,
		bank:        bank,
		eligible:    cfg.EligibleScheme,
	}, nil
}

// Handle runs one webhook body through the round-up gates. Gates that do not
// apply return an Outcome with a Reason and a nil error; only failures return
// an error.
func (e *RoundUpEngine) Handle(ctx context.Context, body []byte) (Outcome, error) {
	event, reason := ParseTransactionEvent(body)
	if reason != "" {
		return Outcome{Reason: reason, TransactionID: event.Data.ID}, nil
	}
	return e.HandleEvent(ctx, event)
}

func (e *RoundUpEngine) HandleEvent(ctx context.Context, event TransactionEvent) (Outcome, error) {
	tx := event.Data
	outcome := Outcome{TransactionID: tx.ID}
	if event.Type != EventTypeTransactionCreated {
		outcome.Reason = AbortUnsupportedType
		return outcome, nil
	}
	// Pot transfers and credits must never re-enter the pipeline.
	if !e.eligible(tx.Scheme) || tx.Amount >= 0 {
		outcome.Reason = AbortIneligible
		return outcome, nil
	}

	user, found, err := e.store.GetUserByAccountID(ctx, tx.AccountID)
	if err != nil {
		return outcome, err
	}
	if !found {
		outcome.Reason = AbortUnknownAccount
		return outcome, nil
	}
	outcome.UserID = user.UserID
	if !user.IsLinked() {
		outcome.Reason = AbortUnlinkedUser
		return outcome, nil
	}

	diff := ComputeRoundUp(tx.Amount)
	if diff < 0 || diff >= 100 {
		return outcome, NewAmountOutOfRangeError(tx.ID, tx.Amount, diff)
	}
	if diff == 0 {
		outcome.Reason = AbortRoundAmount
		return outcome, nil
	}

	refreshed, err := e.credentials.RefreshAuthToken(ctx, user.UserID)
	if err != nil {
		return outcome, err
	}

	dedupeKey := DedupeKey(diff, tx.ID)
	container, err := e.bank.DepositToContainer(ctx, DepositRequest{
		AccessToken: refreshed.AccessToken,
		AccountID:   refreshed.AccountID,
		ContainerID: refreshed.ContainerID,
		Amount:      diff,
		DedupeKey:   dedupeKey,
	})
	if err != nil {
		return outcome, err
	}

	outcome.Transferred = true
	outcome.Amount = diff
	outcome.DedupeKey = dedupeKey
	outcome.Container = container
	return outcome, nil
}
