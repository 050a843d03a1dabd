package command

import (
	"strings"

	"github.com/goliatone/go-fediauth/core"
)

const (
	TypeRegisterApplication  = "fediauth.command.application.register"
	TypeEnsureApplication    = "fediauth.command.application.ensure"
	TypeGenerateSession      = "fediauth.command.session.generate"
	TypeWaitForAuthorization = "fediauth.command.session.wait"
	TypeRememberAccount      = "fediauth.command.account.remember"
	TypeCallEndpoint         = "fediauth.command.account.call"
)

type RegisterApplicationMessage struct {
	Request core.RegisterApplicationRequest
}

func (RegisterApplicationMessage) Type() string { return TypeRegisterApplication }

func (m RegisterApplicationMessage) Validate() error {
	return errInvalid(m.Request.Validate(), "registration request")
}

// EnsureApplicationMessage loads the stored application for the request's
// host, registering a new one when none exists.
type EnsureApplicationMessage struct {
	Request core.RegisterApplicationRequest
}

func (EnsureApplicationMessage) Type() string { return TypeEnsureApplication }

func (m EnsureApplicationMessage) Validate() error {
	return errInvalid(m.Request.Validate(), "registration request")
}

type GenerateSessionMessage struct {
	Application core.Application
}

func (GenerateSessionMessage) Type() string { return TypeGenerateSession }

func (m GenerateSessionMessage) Validate() error {
	return errInvalid(m.Application.Validate(), "application")
}

type WaitForAuthorizationMessage struct {
	Session *core.AuthorizationSession
}

func (WaitForAuthorizationMessage) Type() string { return TypeWaitForAuthorization }

func (m WaitForAuthorizationMessage) Validate() error {
	if m.Session == nil {
		return errRequired("session")
	}
	return nil
}

type RememberAccountMessage struct {
	ApplicationID string
	Label         string
	Account       *core.Account
}

func (RememberAccountMessage) Type() string { return TypeRememberAccount }

func (m RememberAccountMessage) Validate() error {
	if strings.TrimSpace(m.ApplicationID) == "" {
		return errRequired("application_id")
	}
	if m.Account == nil {
		return errRequired("account")
	}
	return nil
}

// CallEndpointMessage issues one signed request on behalf of Account.
type CallEndpointMessage struct {
	Account  *core.Account
	Endpoint string
	Params   core.Params
}

func (CallEndpointMessage) Type() string { return TypeCallEndpoint }

func (m CallEndpointMessage) Validate() error {
	if m.Account == nil {
		return errRequired("account")
	}
	if strings.Trim(strings.TrimSpace(m.Endpoint), "/") == "" {
		return errRequired("endpoint")
	}
	return nil
}
