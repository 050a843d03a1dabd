package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput     = "FEDIAUTH_BAD_INPUT"
	ErrorProtocol     = "FEDIAUTH_PROTOCOL_ERROR"
	ErrorUnsupported  = "FEDIAUTH_UNSUPPORTED"
	ErrorCancelled    = "FEDIAUTH_CANCELLED"
	ErrorRateLimited  = "FEDIAUTH_RATE_LIMITED"
	ErrorNotFound     = "FEDIAUTH_NOT_FOUND"
	ErrorInternal     = "FEDIAUTH_INTERNAL_ERROR"
	ErrorSessionState = "FEDIAUTH_SESSION_STATE"
)

// ServiceErrorConverter is implemented by errors that carry their own
// envelope, such as rate limit throttling errors.
type ServiceErrorConverter interface {
	ToServiceError() *goerrors.Error
}

func NewProtocolError(message string, metadata map[string]any) *goerrors.Error {
	return withMetadata(
		goerrors.New(message, goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorProtocol),
		metadata,
	)
}

func WrapProtocolError(source error, message string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return NewProtocolError(message, metadata)
	}
	return withMetadata(
		goerrors.Wrap(source, goerrors.CategoryExternal, message).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorProtocol),
		metadata,
	)
}

func NewUnsupportedOperationError(message string, metadata map[string]any) *goerrors.Error {
	return withMetadata(
		goerrors.New(message, goerrors.CategoryOperation).
			WithCode(http.StatusNotImplemented).
			WithTextCode(ErrorUnsupported),
		metadata,
	)
}

func NewCancelledError(source error, metadata map[string]any) *goerrors.Error {
	message := "core: operation cancelled"
	if source == nil {
		source = context.Canceled
	}
	return withMetadata(
		goerrors.Wrap(source, goerrors.CategoryOperation, message).
			WithCode(499).
			WithTextCode(ErrorCancelled),
		metadata,
	)
}

func NewBadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	return withMetadata(
		goerrors.New(message, goerrors.CategoryNotFound).
			WithCode(http.StatusNotFound).
			WithTextCode(ErrorNotFound),
		metadata,
	)
}

func newSessionStateError(message string, state SessionState) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorSessionState).
		WithMetadata(map[string]any{"session_state": state.String()})
}

func newInternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func IsProtocolError(err error) bool {
	return hasTextCode(err, ErrorProtocol)
}

func IsUnsupportedOperation(err error) bool {
	return hasTextCode(err, ErrorUnsupported)
}

func IsCancelled(err error) bool {
	return hasTextCode(err, ErrorCancelled)
}

func IsNotFound(err error) bool {
	return hasTextCode(err, ErrorNotFound)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return false
	}
	return rich.TextCode == code
}

func withMetadata(err *goerrors.Error, metadata map[string]any) *goerrors.Error {
	if err == nil || len(metadata) == 0 {
		return err
	}
	return err.WithMetadata(RedactSensitiveMap(metadata))
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var converter ServiceErrorConverter
	if errors.As(err, &converter) {
		if converted := converter.ToServiceError(); converted != nil {
			return ensureServiceErrorEnvelope(converted)
		}
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(err, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapProtocolError(err, "core: request deadline exceeded", nil)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not implemented"), strings.Contains(msg, "unsupported"):
		return newServiceError(err.Error(), goerrors.CategoryOperation, ErrorUnsupported)
	case strings.Contains(msg, "not found"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorNotFound)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped == nil {
		mapped = goerrors.Wrap(err, goerrors.CategoryInternal, err.Error())
	}
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
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorProtocol
	case goerrors.CategoryOperation:
		return ErrorUnsupported
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
