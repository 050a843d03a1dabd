package query

import "strings"

const (
	TypeLoadApplication = "fediauth.query.application.load"
	TypeLoadAccount     = "fediauth.query.account.load"
	TypeListAccounts    = "fediauth.query.account.list"
)

type LoadApplicationMessage struct {
	Host string
}

func (LoadApplicationMessage) Type() string { return TypeLoadApplication }

func (m LoadApplicationMessage) Validate() error {
	if strings.TrimSpace(m.Host) == "" {
		return errRequired("host")
	}
	return nil
}

type LoadAccountMessage struct {
	AccountID string
}

func (LoadAccountMessage) Type() string { return TypeLoadAccount }

func (m LoadAccountMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return errRequired("account_id")
	}
	return nil
}

type ListAccountsMessage struct {
	ApplicationID string
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	if strings.TrimSpace(m.ApplicationID) == "" {
		return errRequired("application_id")
	}
	return nil
}
