package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestDispatchRejectsBinaryWithoutNetworkCall(t *testing.T) {
	transport := newScriptedTransport(reply(`{}`))
	svc := newTestService(t, transport)

	_, err := svc.Dispatch(context.Background(), Request{Host: "misskey.example", Endpoint: "drive/files/create", Binary: true})
	if !IsUnsupportedOperation(err) {
		t.Fatalf("expected unsupported operation, got %v", err)
	}
	if len(transport.calls()) != 0 {
		t.Fatalf("expected binary request to skip the transport")
	}
}

func TestDispatchValidatesTarget(t *testing.T) {
	transport := newScriptedTransport(reply(`{}`))
	svc := newTestService(t, transport)

	for name, req := range map[string]Request{
		"empty host":     {Endpoint: "i"},
		"empty endpoint": {Host: "misskey.example", Endpoint: " / "},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Dispatch(context.Background(), req)
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) || rich.TextCode != ErrorBadInput {
				t.Fatalf("expected bad input, got %v", err)
			}
		})
	}
	if len(transport.calls()) != 0 {
		t.Fatalf("expected invalid requests to skip the transport")
	}
}

func TestDispatchNormalizesEndpoint(t *testing.T) {
	transport := newScriptedTransport(reply(`{}`))
	svc := newTestService(t, transport)
	if _, err := svc.Dispatch(context.Background(), Request{Host: " misskey.example ", Endpoint: "/notes/create/"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	call := transport.calls()[0]
	if call.Host != "misskey.example" || call.Endpoint != "notes/create" {
		t.Fatalf("unexpected normalized request %#v", call)
	}
}

func TestDispatchAppliesRequestTimeout(t *testing.T) {
	var deadline time.Time
	transport := &deadlineTransport{capture: &deadline}
	svc, err := NewService(Config{RequestTimeoutMS: 1500}, WithTransport(transport))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Dispatch(context.Background(), Request{Host: "misskey.example", Endpoint: "meta"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > 1500*time.Millisecond {
		t.Fatalf("expected a request deadline within the configured timeout, got %v", deadline)
	}
}

type deadlineTransport struct {
	capture *time.Time
}

func (deadlineTransport) Kind() string { return "deadline" }

func (d *deadlineTransport) Request(ctx context.Context, _ Request) (Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		*d.capture = deadline
	}
	return Response{StatusCode: 200, Body: Value(`{}`)}, nil
}

func TestDispatchMapsTransportErrors(t *testing.T) {
	svc := newTestService(t, newScriptedTransport(failure(errors.New("dial tcp: connection refused"))))
	_, err := svc.Dispatch(context.Background(), Request{Host: "misskey.example", Endpoint: "meta"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode == "" || rich.Code == 0 {
		t.Fatalf("expected stable text and status code, got %#v", rich)
	}
}

func TestDispatchDeadlineIsProtocolError(t *testing.T) {
	svc := newTestService(t, newScriptedTransport(failure(context.DeadlineExceeded)))
	_, err := svc.Dispatch(context.Background(), Request{Host: "misskey.example", Endpoint: "meta"})
	if !IsProtocolError(err) {
		t.Fatalf("expected request deadline to surface as protocol error, got %v", err)
	}
}
