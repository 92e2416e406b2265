package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-roundup/core"
)

// transportError reports a failure that happened before or while talking to
// the bank, as opposed to a bank response with a non-2xx status.
func transportError(message string, category goerrors.Category, metadata map[string]any) error {
	return transportWrapError(nil, category, message, metadata)
}

func transportWrapError(source error, category goerrors.Category, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	code, textCode := transportCodes(category)
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// transportCodes maps a category onto the status and text code a caller of
// the bank client sees. Upstream trouble is a 502, a malformed request a 400.
func transportCodes(category goerrors.Category) (int, string) {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest, core.ServiceErrorBadInput
	case goerrors.CategoryExternal:
		return http.StatusBadGateway, core.ServiceErrorExternalFailure
	default:
		return http.StatusInternalServerError, core.ServiceErrorInternal
	}
}
