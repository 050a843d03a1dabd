package core

import (
	"context"
	"strings"
)

// SigningParam is the request parameter that carries the signing credential.
const SigningParam = "i"

// Account is an authorized user of an Application. The signing credential is
// derived once at construction and never changes.
type Account struct {
	Application Application
	AccessToken string

	signingCredential string
	service           *Service
}

func newAccount(service *Service, app Application, accessToken string) *Account {
	return &Account{
		Application:       app,
		AccessToken:       accessToken,
		signingCredential: DeriveSigningCredential(app.Secret, accessToken),
		service:           service,
	}
}

// RestoreAccount rebuilds an Account from a persisted raw user token without
// contacting the service.
func (s *Service) RestoreAccount(app Application, accessToken string) (*Account, error) {
	if err := app.Validate(); err != nil {
		return nil, s.mapError(err)
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, s.mapError(NewBadInputError("core: access token is required"))
	}
	return newAccount(s, app, accessToken), nil
}

func (a *Account) SigningCredential() string {
	if a == nil {
		return ""
	}
	return a.signingCredential
}

// Request calls endpoint on the account's host with the signing credential
// prepended to params. A caller supplied "i" is dropped; the account's
// credential always wins.
func (a *Account) Request(ctx context.Context, endpoint string, params Params) (out Value, err error) {
	if a == nil || a.service == nil {
		return nil, newInternalError("core: account is not bound to a service")
	}
	svc := a.service
	fields := map[string]any{
		"host":     a.Application.Host,
		"endpoint": strings.Trim(strings.TrimSpace(endpoint), "/"),
	}
	op := svc.startOperation(ctx, opAccountRequest, fields)
	defer func() { op.finish(err) }()

	if params.Has(SigningParam) {
		svc.log(ctx, levelWarn, "caller supplied signing parameter was replaced", map[string]any{
			"host":     a.Application.Host,
			"endpoint": fields["endpoint"],
		})
		params = params.Without(SigningParam)
	}
	signed := make(Params, 0, len(params)+1)
	signed = append(signed, P(SigningParam, a.signingCredential))
	signed = append(signed, params...)

	res, err := svc.Dispatch(ctx, Request{
		Host:     a.Application.Host,
		Endpoint: endpoint,
		Params:   signed,
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		remote := remoteErrorFields(res.Body)
		for key, value := range remote {
			fields[key] = value
		}
		fields["status_code"] = res.StatusCode
		err = svc.mapError(NewProtocolError("core: remote service rejected the request", fields))
		return nil, err
	}
	return res.Body, nil
}

// RememberApplication persists app along with the registration request that
// produced it.
func (s *Service) RememberApplication(ctx context.Context, req RegisterApplicationRequest, app Application) (StoredApplication, error) {
	if s == nil || s.applicationStore == nil {
		return StoredApplication{}, newInternalError("core: application store is not configured")
	}
	if err := app.Validate(); err != nil {
		return StoredApplication{}, s.mapError(err)
	}
	permissions := make([]string, 0, len(req.Permissions))
	permissions = append(permissions, req.Permissions...)
	stored, err := s.applicationStore.Save(ctx, StoredApplication{
		Host:        app.Host,
		Name:        req.Name,
		Description: req.Description,
		Permissions: permissions,
		CallbackURL: strings.TrimSpace(req.CallbackURL),
		Secret:      app.Secret,
	})
	if err != nil {
		return StoredApplication{}, s.mapError(err)
	}
	s.log(ctx, levelInfo, "application stored", map[string]any{
		"host":               stored.Host,
		"application_id":     stored.ID,
		"secret_fingerprint": Fingerprint(stored.Secret),
	})
	return stored, nil
}

func (s *Service) LoadApplication(ctx context.Context, host string) (StoredApplication, error) {
	if s == nil || s.applicationStore == nil {
		return StoredApplication{}, newInternalError("core: application store is not configured")
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return StoredApplication{}, s.mapError(NewBadInputError("core: host is required"))
	}
	stored, err := s.applicationStore.GetByHost(ctx, host)
	if err != nil {
		return StoredApplication{}, s.mapError(err)
	}
	return stored, nil
}

// EnsureApplication returns the stored application for req.Host, registering
// and persisting a new one when none exists yet.
func (s *Service) EnsureApplication(ctx context.Context, req RegisterApplicationRequest) (StoredApplication, error) {
	stored, err := s.LoadApplication(ctx, req.Host)
	if err == nil {
		return stored, nil
	}
	if !IsNotFound(err) {
		return StoredApplication{}, err
	}
	app, err := s.RegisterApplication(ctx, req)
	if err != nil {
		return StoredApplication{}, err
	}
	return s.RememberApplication(ctx, req, app)
}

func (s *Service) RememberAccount(ctx context.Context, applicationID string, label string, account *Account) (StoredAccount, error) {
	if s == nil || s.accountStore == nil {
		return StoredAccount{}, newInternalError("core: account store is not configured")
	}
	if account == nil || strings.TrimSpace(account.AccessToken) == "" {
		return StoredAccount{}, s.mapError(NewBadInputError("core: account is required"))
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return StoredAccount{}, s.mapError(NewBadInputError("core: application id is required"))
	}
	stored, err := s.accountStore.Save(ctx, StoredAccount{
		ApplicationID: applicationID,
		Host:          account.Application.Host,
		Label:         strings.TrimSpace(label),
		AccessToken:   account.AccessToken,
	})
	if err != nil {
		return StoredAccount{}, s.mapError(err)
	}
	s.log(ctx, levelInfo, "account stored", map[string]any{
		"host":              stored.Host,
		"application_id":    stored.ApplicationID,
		"account_id":        stored.ID,
		"token_fingerprint": Fingerprint(stored.AccessToken),
	})
	return stored, nil
}

// LoadAccount rebuilds a persisted account together with its application.
func (s *Service) LoadAccount(ctx context.Context, id string) (*Account, error) {
	if s == nil || s.accountStore == nil || s.applicationStore == nil {
		return nil, newInternalError("core: account and application stores are required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, s.mapError(NewBadInputError("core: account id is required"))
	}
	storedAccount, err := s.accountStore.Get(ctx, id)
	if err != nil {
		return nil, s.mapError(err)
	}
	storedApp, err := s.applicationStore.Get(ctx, storedAccount.ApplicationID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return s.RestoreAccount(storedApp.Application(), storedAccount.AccessToken)
}

func (s *Service) ListAccounts(ctx context.Context, applicationID string) ([]StoredAccount, error) {
	if s == nil || s.accountStore == nil {
		return nil, newInternalError("core: account store is not configured")
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, s.mapError(NewBadInputError("core: application id is required"))
	}
	accounts, err := s.accountStore.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return accounts, nil
}

// ForgetAccount removes a persisted account. The remote grant is left intact.
func (s *Service) ForgetAccount(ctx context.Context, id string) error {
	if s == nil || s.accountStore == nil {
		return newInternalError("core: account store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return s.mapError(NewBadInputError("core: account id is required"))
	}
	if err := s.accountStore.Delete(ctx, id); err != nil {
		return s.mapError(err)
	}
	s.log(ctx, levelInfo, "account forgotten", map[string]any{"account_id": id})
	return nil
}
