package fediauth

import (
	"fmt"

	fediauthcommand "github.com/goliatone/go-fediauth/command"
	fediauthquery "github.com/goliatone/go-fediauth/query"
)

type CommandQueryService interface {
	fediauthcommand.MutatingService
	fediauthquery.ApplicationReader
	fediauthquery.AccountReader
}

type Commands struct {
	RegisterApplication  *fediauthcommand.RegisterApplicationCommand
	EnsureApplication    *fediauthcommand.EnsureApplicationCommand
	GenerateSession      *fediauthcommand.GenerateSessionCommand
	WaitForAuthorization *fediauthcommand.WaitForAuthorizationCommand
	RememberAccount      *fediauthcommand.RememberAccountCommand
	CallEndpoint         *fediauthcommand.CallEndpointCommand
}

type Queries struct {
	LoadApplication *fediauthquery.LoadApplicationQuery
	LoadAccount     *fediauthquery.LoadAccountQuery
	ListAccounts    *fediauthquery.ListAccountsQuery
}

// Facade groups the command and query handlers bound to one service for
// hosts that call them directly instead of through a dispatcher.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("fediauth: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			RegisterApplication:  fediauthcommand.NewRegisterApplicationCommand(service),
			EnsureApplication:    fediauthcommand.NewEnsureApplicationCommand(service),
			GenerateSession:      fediauthcommand.NewGenerateSessionCommand(service),
			WaitForAuthorization: fediauthcommand.NewWaitForAuthorizationCommand(),
			RememberAccount:      fediauthcommand.NewRememberAccountCommand(service),
			CallEndpoint:         fediauthcommand.NewCallEndpointCommand(),
		},
		queries: Queries{
			LoadApplication: fediauthquery.NewLoadApplicationQuery(service),
			LoadAccount:     fediauthquery.NewLoadAccountQuery(service),
			ListAccounts:    fediauthquery.NewListAccountsQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
