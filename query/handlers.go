package query

import (
	"context"

	"github.com/goliatone/go-fediauth/core"
)

type ApplicationReader interface {
	LoadApplication(ctx context.Context, host string) (core.StoredApplication, error)
}

type AccountReader interface {
	LoadAccount(ctx context.Context, id string) (*core.Account, error)
	ListAccounts(ctx context.Context, applicationID string) ([]core.StoredAccount, error)
}

type LoadApplicationQuery struct {
	reader ApplicationReader
}

func NewLoadApplicationQuery(reader ApplicationReader) *LoadApplicationQuery {
	return &LoadApplicationQuery{reader: reader}
}

func (q *LoadApplicationQuery) Query(ctx context.Context, msg LoadApplicationMessage) (core.StoredApplication, error) {
	if q == nil || q.reader == nil {
		return core.StoredApplication{}, errMissingReader("application")
	}
	return q.reader.LoadApplication(ctx, msg.Host)
}

// LoadAccountQuery returns a ready-to-use Account rebuilt from storage.
type LoadAccountQuery struct {
	reader AccountReader
}

func NewLoadAccountQuery(reader AccountReader) *LoadAccountQuery {
	return &LoadAccountQuery{reader: reader}
}

func (q *LoadAccountQuery) Query(ctx context.Context, msg LoadAccountMessage) (*core.Account, error) {
	if q == nil || q.reader == nil {
		return nil, errMissingReader("account")
	}
	return q.reader.LoadAccount(ctx, msg.AccountID)
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.StoredAccount, error) {
	if q == nil || q.reader == nil {
		return nil, errMissingReader("account")
	}
	return q.reader.ListAccounts(ctx, msg.ApplicationID)
}
