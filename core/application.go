package core

import (
	"context"
	"strings"
)

const (
	EndpointAppCreate       = "app/create"
	EndpointSessionGenerate = "auth/session/generate"
	EndpointSessionUserKey  = "auth/session/userkey"
)

// Application is a registered third-party application. It is immutable and
// shared by every session and account derived from it.
type Application struct {
	Host   string
	Secret string
}

func (a Application) Validate() error {
	if strings.TrimSpace(a.Host) == "" {
		return NewBadInputError("core: application host is required")
	}
	if strings.TrimSpace(a.Secret) == "" {
		return NewBadInputError("core: application secret is required")
	}
	return nil
}

type RegisterApplicationRequest struct {
	Host        string
	Name        string
	Description string
	Permissions []string
	// CallbackURL is sent as JSON null when empty.
	CallbackURL string
}

func (r RegisterApplicationRequest) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return NewBadInputError("core: host is required for registration")
	}
	return nil
}

func (r RegisterApplicationRequest) params() Params {
	var callback any
	if trimmed := strings.TrimSpace(r.CallbackURL); trimmed != "" {
		callback = trimmed
	}
	permissions := make([]string, 0, len(r.Permissions))
	permissions = append(permissions, r.Permissions...)
	return Params{
		P("name", r.Name),
		P("description", r.Description),
		P("permission", permissions),
		P("callbackUrl", callback),
	}
}

// RestoreApplication rebuilds an Application from previously persisted
// credentials without contacting the service.
func RestoreApplication(host string, secret string) (Application, error) {
	app := Application{Host: strings.TrimSpace(host), Secret: secret}
	if err := app.Validate(); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (s *Service) RegisterApplication(ctx context.Context, req RegisterApplicationRequest) (app Application, err error) {
	host := strings.TrimSpace(req.Host)
	fields := map[string]any{
		"host":        host,
		"endpoint":    EndpointAppCreate,
		"name":        req.Name,
		"permissions": len(req.Permissions),
	}
	op := s.startOperation(ctx, opRegisterApplication, fields)
	defer func() { op.finish(err) }()

	if err = req.Validate(); err != nil {
		err = s.mapError(err)
		return Application{}, err
	}

	res, err := s.Dispatch(ctx, Request{
		Host:     host,
		Endpoint: EndpointAppCreate,
		Params:   req.params(),
	})
	if err != nil {
		return Application{}, err
	}

	obj, decodeErr := res.Body.Object()
	if decodeErr != nil {
		err = s.mapError(WrapProtocolError(decodeErr, "core: registration response is not a json object", fields))
		return Application{}, err
	}
	secret, ok := stringMember(obj, "secret")
	if !ok {
		err = s.mapError(NewProtocolError("core: registration response is missing secret", mergeFields(fields, remoteErrorFields(res.Body))))
		return Application{}, err
	}
	fields["secret_fingerprint"] = Fingerprint(secret)
	return Application{Host: host, Secret: secret}, nil
}
