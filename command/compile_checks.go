package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RegisterApplicationMessage]  = (*RegisterApplicationCommand)(nil)
	_ gocmd.Commander[EnsureApplicationMessage]    = (*EnsureApplicationCommand)(nil)
	_ gocmd.Commander[GenerateSessionMessage]      = (*GenerateSessionCommand)(nil)
	_ gocmd.Commander[WaitForAuthorizationMessage] = (*WaitForAuthorizationCommand)(nil)
	_ gocmd.Commander[RememberAccountMessage]      = (*RememberAccountCommand)(nil)
	_ gocmd.Commander[CallEndpointMessage]         = (*CallEndpointCommand)(nil)
)
