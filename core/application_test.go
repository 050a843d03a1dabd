package core

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestRegisterApplicationSendsRegistrationParams(t *testing.T) {
	transport := newScriptedTransport(reply(`{"id":"app1","secret":"app-secret"}`))
	svc := newTestService(t, transport)

	app, err := svc.RegisterApplication(context.Background(), RegisterApplicationRequest{
		Host:        "misskey.example",
		Name:        "client",
		Description: "desc",
		Permissions: []string{"read:account", "write:notes"},
	})
	if err != nil {
		t.Fatalf("register application: %v", err)
	}
	if app.Host != "misskey.example" || app.Secret != "app-secret" {
		t.Fatalf("unexpected application %#v", app)
	}

	calls := transport.calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(calls))
	}
	if calls[0].Endpoint != EndpointAppCreate || calls[0].Host != "misskey.example" {
		t.Fatalf("unexpected request target %#v", calls[0])
	}
	want := `{"name":"client","description":"desc","permission":["read:account","write:notes"],"callbackUrl":null}`
	if got := encodedParams(t, calls[0]); got != want {
		t.Fatalf("expected params %s, got %s", want, got)
	}
}

func TestRegisterApplicationEncodesCallbackAndEmptyPermissions(t *testing.T) {
	transport := newScriptedTransport(reply(`{"secret":"s"}`))
	svc := newTestService(t, transport)

	if _, err := svc.RegisterApplication(context.Background(), RegisterApplicationRequest{
		Host:        "misskey.example",
		CallbackURL: "https://client.example/cb",
	}); err != nil {
		t.Fatalf("register application: %v", err)
	}
	want := `{"name":"","description":"","permission":[],"callbackUrl":"https://client.example/cb"}`
	if got := encodedParams(t, transport.calls()[0]); got != want {
		t.Fatalf("expected params %s, got %s", want, got)
	}
}

func TestRegisterApplicationRejectsResponsesWithoutSecret(t *testing.T) {
	for name, body := range map[string]string{
		"missing secret": `{"id":"app1"}`,
		"empty secret":   `{"secret":""}`,
		"wrong type":     `{"secret":42}`,
		"not an object":  `["secret"]`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, newScriptedTransport(reply(body)))
			_, err := svc.RegisterApplication(context.Background(), RegisterApplicationRequest{Host: "misskey.example"})
			if !IsProtocolError(err) {
				t.Fatalf("expected protocol error, got %v", err)
			}
		})
	}
}

func TestRegisterApplicationRequiresHost(t *testing.T) {
	transport := newScriptedTransport()
	svc := newTestService(t, transport)

	_, err := svc.RegisterApplication(context.Background(), RegisterApplicationRequest{Host: "  "})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ErrorBadInput {
		t.Fatalf("expected bad input error, got %v", err)
	}
	if len(transport.calls()) != 0 {
		t.Fatalf("expected no request for invalid input")
	}
}

func TestRestoreApplication(t *testing.T) {
	app, err := RestoreApplication(" misskey.example ", "secret")
	if err != nil {
		t.Fatalf("restore application: %v", err)
	}
	if app.Host != "misskey.example" {
		t.Fatalf("expected trimmed host, got %q", app.Host)
	}
	if _, err := RestoreApplication("misskey.example", ""); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}
