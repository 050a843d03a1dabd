package command

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

func errMissingService(role string) error {
	return goerrors.New(fmt.Sprintf("command: %s service is required", role), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

// errRequired reports a missing message field as a single field validation
// error.
func errRequired(field string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: strings.ReplaceAll(field, "_", " ") + " is required",
	}).WithCode(http.StatusBadRequest).WithTextCode(core.ErrorBadInput)
}

func errInvalid(err error, subject string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "command: invalid "+subject).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}
