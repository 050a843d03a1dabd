package fediauth

import (
	"github.com/goliatone/go-fediauth/core"
	"github.com/goliatone/go-fediauth/transport"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Application = core.Application
type AuthorizationSession = core.AuthorizationSession
type Account = core.Account
type CheckResult = core.CheckResult
type UserToken = core.UserToken
type Params = core.Params
type Value = core.Value

type RegisterApplicationRequest = core.RegisterApplicationRequest

type StoredApplication = core.StoredApplication
type StoredAccount = core.StoredAccount
type ApplicationStore = core.ApplicationStore
type AccountStore = core.AccountStore

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithTransport        = core.WithTransport
	WithTransportFactory = core.WithTransportFactory
	WithSleeper          = core.WithSleeper
	WithApplicationStore = core.WithApplicationStore
	WithAccountStore     = core.WithAccountStore
)

var (
	P                       = core.P
	RestoreApplication      = core.RestoreApplication
	DeriveSigningCredential = core.DeriveSigningCredential
	IsNotFound              = core.IsNotFound
	IsCancelled             = core.IsCancelled
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewDefaultTransport builds the transport named by cfg from the default
// registry. client replaces http.DefaultClient when set and policy, when set,
// guards every call.
func NewDefaultTransport(cfg Config, client transport.HTTPDoer, policy core.RateLimitPolicy) (core.Transport, error) {
	config := transport.ConfigMap(cfg)
	if client != nil {
		config["client"] = client
	}
	built, err := transport.NewDefaultRegistry().Build(cfg.TransportKind(), config)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return built, nil
	}
	return transport.NewRateLimitedTransport(built, policy), nil
}

// WithDefaultTransport builds the registry transport from the merged service
// config, using client and policy the same way NewDefaultTransport does.
func WithDefaultTransport(client transport.HTTPDoer, policy core.RateLimitPolicy) Option {
	return core.WithTransportFactory(func(cfg Config) (core.Transport, error) {
		return NewDefaultTransport(cfg, client, policy)
	})
}

// NewService wires the default JSON transport unless opts supply one. The
// transport is built after config layers merge so loaded values reach it.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, WithDefaultTransport(nil, nil))
	all = append(all, opts...)
	return core.NewService(cfg, all...)
}
