package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-fediauth/core"
)

type MutatingService interface {
	RegisterApplication(ctx context.Context, req core.RegisterApplicationRequest) (core.Application, error)
	EnsureApplication(ctx context.Context, req core.RegisterApplicationRequest) (core.StoredApplication, error)
	GenerateSession(ctx context.Context, app core.Application) (*core.AuthorizationSession, error)
	RememberAccount(ctx context.Context, applicationID string, label string, account *core.Account) (core.StoredAccount, error)
}

type RegisterApplicationCommand struct {
	service MutatingService
}

func NewRegisterApplicationCommand(service MutatingService) *RegisterApplicationCommand {
	return &RegisterApplicationCommand{service: service}
}

func (c *RegisterApplicationCommand) Execute(ctx context.Context, msg RegisterApplicationMessage) error {
	if c == nil || c.service == nil {
		return errMissingService("registration")
	}
	out, err := c.service.RegisterApplication(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnsureApplicationCommand struct {
	service MutatingService
}

func NewEnsureApplicationCommand(service MutatingService) *EnsureApplicationCommand {
	return &EnsureApplicationCommand{service: service}
}

func (c *EnsureApplicationCommand) Execute(ctx context.Context, msg EnsureApplicationMessage) error {
	if c == nil || c.service == nil {
		return errMissingService("registration")
	}
	out, err := c.service.EnsureApplication(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type GenerateSessionCommand struct {
	service MutatingService
}

func NewGenerateSessionCommand(service MutatingService) *GenerateSessionCommand {
	return &GenerateSessionCommand{service: service}
}

func (c *GenerateSessionCommand) Execute(ctx context.Context, msg GenerateSessionMessage) error {
	if c == nil || c.service == nil {
		return errMissingService("session")
	}
	out, err := c.service.GenerateSession(ctx, msg.Application)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// WaitForAuthorizationCommand blocks until the session resolves or ctx is
// done. The session carries its own service binding.
type WaitForAuthorizationCommand struct{}

func NewWaitForAuthorizationCommand() *WaitForAuthorizationCommand {
	return &WaitForAuthorizationCommand{}
}

func (c *WaitForAuthorizationCommand) Execute(ctx context.Context, msg WaitForAuthorizationMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := msg.Session.WaitForAuthorization(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RememberAccountCommand struct {
	service MutatingService
}

func NewRememberAccountCommand(service MutatingService) *RememberAccountCommand {
	return &RememberAccountCommand{service: service}
}

func (c *RememberAccountCommand) Execute(ctx context.Context, msg RememberAccountMessage) error {
	if c == nil || c.service == nil {
		return errMissingService("account")
	}
	out, err := c.service.RememberAccount(ctx, msg.ApplicationID, msg.Label, msg.Account)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CallEndpointCommand struct{}

func NewCallEndpointCommand() *CallEndpointCommand {
	return &CallEndpointCommand{}
}

func (c *CallEndpointCommand) Execute(ctx context.Context, msg CallEndpointMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := msg.Account.Request(ctx, msg.Endpoint, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
