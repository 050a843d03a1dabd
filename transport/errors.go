package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

var categoryTextCodes = map[goerrors.Category]string{
	goerrors.CategoryBadInput:   core.ErrorBadInput,
	goerrors.CategoryValidation: core.ErrorBadInput,
	goerrors.CategoryRateLimit:  core.ErrorRateLimited,
	goerrors.CategoryOperation:  core.ErrorUnsupported,
	goerrors.CategoryExternal:   core.ErrorProtocol,
}

func transportError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	return buildTransportError(nil, category, message, code, metadata)
}

func transportWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	return buildTransportError(source, category, message, code, metadata)
}

// buildTransportError redacts metadata before it is attached, since
// transport metadata may echo request parameters.
func buildTransportError(source error, category goerrors.Category, message string, code int, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, category, message)
	} else {
		err = goerrors.New(message, category)
	}
	err = err.WithCode(code).WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err = err.WithMetadata(core.RedactSensitiveMap(metadata))
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	if code, ok := categoryTextCodes[category]; ok {
		return code
	}
	return core.ErrorInternal
}
