package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Abort reasons reported in Outcome.Reason. They are logged, never returned to
// the caller of the webhook endpoint.
const (
	AbortEmptyBody       = "empty_body"
	AbortMalformedBody   = "malformed_body"
	AbortInvalidEvent    = "invalid_event"
	AbortUnsupportedType = "unsupported_type"
	AbortIneligible      = "ineligible_transaction"
	AbortUnknownAccount  = "unknown_account"
	AbortUnlinkedUser    = "unlinked_user"
	AbortRoundAmount     = "round_amount"
)

type rawTransactionEvent struct {
	Type *string          `json:"type"`
	Data *json.RawMessage `json:"data"`
}

// ParseTransactionEvent decodes a webhook body into a TransactionEvent. It
// never fails; an unusable body yields a non-empty abort reason.
func ParseTransactionEvent(body []byte) (TransactionEvent, string) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return TransactionEvent{}, AbortEmptyBody
	}
	var raw rawTransactionEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return TransactionEvent{}, AbortMalformedBody
	}
	if raw.Type == nil || raw.Data == nil {
		return TransactionEvent{}, AbortMalformedBody
	}
	event := TransactionEvent{Type: strings.TrimSpace(*raw.Type)}
	if event.Type != EventTypeTransactionCreated {
		return event, AbortUnsupportedType
	}
	if err := json.Unmarshal(*raw.Data, &event.Data); err != nil {
		return event, AbortInvalidEvent
	}
	if reason := validateTransaction(event.Data); reason != "" {
		return event, reason
	}
	return event, ""
}

func validateTransaction(tx Transaction) string {
	if strings.TrimSpace(tx.ID) == "" || strings.TrimSpace(tx.AccountID) == "" {
		return AbortInvalidEvent
	}
	return ""
}
