package query

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

func errMissingReader(kind string) error {
	return goerrors.New("query: "+kind+" reader is required", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

func errRequired(field string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: strings.ReplaceAll(field, "_", " ") + " is required",
	}).WithCode(http.StatusBadRequest).WithTextCode(core.ErrorBadInput)
}
