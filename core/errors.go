package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput                  = "ROUNDUP_BAD_INPUT"
	ServiceErrorUnauthorized              = "ROUNDUP_UNAUTHORIZED"
	ServiceErrorForbidden                 = "ROUNDUP_FORBIDDEN"
	ServiceErrorNotFound                  = "ROUNDUP_NOT_FOUND"
	ServiceErrorUnknownUser               = "ROUNDUP_UNKNOWN_USER"
	ServiceErrorAuthExchangeFailed        = "ROUNDUP_AUTH_EXCHANGE_FAILED"
	ServiceErrorAuthRefreshFailed         = "ROUNDUP_AUTH_REFRESH_FAILED"
	ServiceErrorWebhookRegistrationFailed = "ROUNDUP_WEBHOOK_REGISTRATION_FAILED"
	ServiceErrorDepositFailed             = "ROUNDUP_DEPOSIT_FAILED"
	ServiceErrorMissingLink               = "ROUNDUP_MISSING_LINK"
	ServiceErrorAmountOutOfRange          = "ROUNDUP_AMOUNT_OUT_OF_RANGE"
	ServiceErrorStoreConflict             = "ROUNDUP_STORE_CONFLICT"
	ServiceErrorOAuthStateInvalid         = "ROUNDUP_OAUTH_STATE_INVALID"
	ServiceErrorExternalFailure           = "ROUNDUP_BANK_FAILURE"
	ServiceErrorOperationFailed           = "ROUNDUP_OPERATION_FAILED"
	ServiceErrorInternal                  = "ROUNDUP_INTERNAL_ERROR"
)

// NewUnknownUserError reports a user with no refresh token on file.
func NewUnknownUserError(userID string) *goerrors.Error {
	return newServiceError("core: no refresh token on file for user", goerrors.CategoryNotFound, ServiceErrorUnknownUser).
		WithMetadata(map[string]any{"user_id": userID})
}

func NewMissingLinkError(userID string, missing ...string) *goerrors.Error {
	return newServiceError("core: user is not linked to an account", goerrors.CategoryBadInput, ServiceErrorMissingLink).
		WithMetadata(map[string]any{"user_id": userID, "missing": strings.Join(missing, ",")})
}

func NewAmountOutOfRangeError(transactionID string, amount int64, diff int64) *goerrors.Error {
	return newServiceError("core: round-up remainder outside [0,100)", goerrors.CategoryInternal, ServiceErrorAmountOutOfRange).
		WithMetadata(map[string]any{"transaction_id": transactionID, "amount": amount, "diff": diff})
}

func NewVersionConflictError(documentID string, expected int64) *goerrors.Error {
	return newServiceError("core: config document version conflict", goerrors.CategoryConflict, ServiceErrorStoreConflict).
		WithMetadata(map[string]any{"document_id": documentID, "expected_version": expected})
}

// NewBankError wraps a failed bank call, keeping the upstream status code.
func NewBankError(source error, textCode string, message string, statusCode int) *goerrors.Error {
	category := goerrors.CategoryExternal
	if statusCode == http.StatusUnauthorized {
		category = goerrors.CategoryAuth
	}
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(http.StatusBadGateway).WithTextCode(textCode)
	if statusCode > 0 {
		err = err.WithMetadata(map[string]any{"status_code": statusCode})
	}
	return err
}

// IsTextCode reports whether err carries the given go-errors text code.
func IsTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func IsVersionConflict(err error) bool {
	return IsTextCode(err, ServiceErrorStoreConflict)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "oauth state"):
		return newServiceError(err.Error(), goerrors.CategoryAuth, ServiceErrorOAuthStateInvalid)
	case strings.Contains(msg, "version conflict"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ServiceErrorStoreConflict)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ServiceErrorForbidden
	case goerrors.CategoryConflict:
		return ServiceErrorStoreConflict
	case goerrors.CategoryExternal:
		return ServiceErrorExternalFailure
	case goerrors.CategoryOperation:
		return ServiceErrorOperationFailed
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
