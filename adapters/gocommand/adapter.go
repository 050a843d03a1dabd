package gocommand

import (
	"context"
	"net/http"
	"strings"
	"sync"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
	fediauthcommand "github.com/goliatone/go-fediauth/command"
	"github.com/goliatone/go-fediauth/core"
	fediauthquery "github.com/goliatone/go-fediauth/query"
)

// ValidateMessageContract enforces Type() plus the optional Validate().
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryValidation, "gocommand: message failed validation").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	m, ok := msg.(gocmd.Message)
	if !ok || strings.TrimSpace(m.Type()) == "" {
		return goerrors.New("gocommand: message type is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	return nil
}

// Service is the subset of core.Service the bus routes messages to.
type Service interface {
	fediauthcommand.MutatingService
	fediauthquery.ApplicationReader
	fediauthquery.AccountReader
}

// Bus registers the fediauth commands and queries with a go-command
// registry and subscribes them to the process wide dispatcher.
type Bus struct {
	registry *gocmd.Registry

	mu            sync.Mutex
	subscriptions []commanddispatcher.Subscription
}

func NewBus(registry *gocmd.Registry) *Bus {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *gocmd.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// Mount wires every fediauth handler against service and initializes the
// registry. Mount must be paired with Close.
func (b *Bus) Mount(service Service, runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return configurationError("gocommand: registry is not configured")
	}
	if service == nil {
		return configurationError("gocommand: service is required")
	}
	steps := []func() error{
		func() error {
			return register(b, fediauthcommand.NewRegisterApplicationCommand(service), runnerOpts...)
		},
		func() error {
			return register(b, fediauthcommand.NewEnsureApplicationCommand(service), runnerOpts...)
		},
		func() error {
			return register(b, fediauthcommand.NewGenerateSessionCommand(service), runnerOpts...)
		},
		func() error {
			return register(b, fediauthcommand.NewWaitForAuthorizationCommand(), runnerOpts...)
		},
		func() error {
			return register(b, fediauthcommand.NewRememberAccountCommand(service), runnerOpts...)
		},
		func() error {
			return register(b, fediauthcommand.NewCallEndpointCommand(), runnerOpts...)
		},
		func() error {
			return registerQuery(b, fediauthquery.NewLoadApplicationQuery(service), runnerOpts...)
		},
		func() error {
			return registerQuery(b, fediauthquery.NewLoadAccountQuery(service), runnerOpts...)
		},
		func() error {
			return registerQuery(b, fediauthquery.NewListAccountsQuery(service), runnerOpts...)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.Close()
			return err
		}
	}
	if err := b.registry.Initialize(); err != nil {
		b.Close()
		return wiringError(err, "gocommand: registry initialization failed")
	}
	return nil
}

// Close removes every dispatcher subscription created by Mount.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subscriptions := b.subscriptions
	b.subscriptions = nil
	b.mu.Unlock()
	for _, subscription := range subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

func (b *Bus) track(subscription commanddispatcher.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = append(b.subscriptions, subscription)
}

func register[T any](b *Bus, cmd gocmd.Commander[T], runnerOpts ...runner.Option) error {
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := b.registry.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return wiringError(err, "gocommand: command registration failed")
	}
	b.track(subscription)
	return nil
}

func registerQuery[T any, R any](b *Bus, qry gocmd.Querier[T, R], runnerOpts ...runner.Option) error {
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := b.registry.RegisterCommand(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return wiringError(err, "gocommand: query registration failed")
	}
	b.track(subscription)
	return nil
}

// Execute dispatches a command message and returns the value its handler
// stored in the result collector.
func Execute[R any, T any](ctx context.Context, msg T) (R, error) {
	var zero R
	if ctx == nil {
		ctx = context.Background()
	}
	collector := gocmd.NewResult[R]()
	if err := commanddispatcher.Dispatch(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, ok := collector.Load()
	if !ok {
		return zero, goerrors.New("gocommand: command produced no result", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal)
	}
	return out, nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func configurationError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

func wiringError(err error, message string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}
