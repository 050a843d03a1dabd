package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-fediauth/core"
)

var (
	_ gocmd.Querier[LoadApplicationMessage, core.StoredApplication] = (*LoadApplicationQuery)(nil)
	_ gocmd.Querier[LoadAccountMessage, *core.Account]              = (*LoadAccountQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.StoredAccount]      = (*ListAccountsQuery)(nil)
)
