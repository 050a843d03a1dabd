package core

import (
	goerrors "github.com/goliatone/go-errors"
)

type ErrorMapper func(err error) *goerrors.Error

type serviceBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	transport        Transport
	transportFactory TransportFactory
	sleeper          Sleeper
	applicationStore ApplicationStore
	accountStore     AccountStore
}

type Option func(*serviceBuilder)

// TransportFactory builds a transport from the resolved service config.
type TransportFactory func(cfg Config) (Transport, error)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTransport(transport Transport) Option {
	return func(b *serviceBuilder) {
		b.transport = transport
	}
}

// WithTransportFactory defers transport construction until config layers
// are merged. A transport set through WithTransport takes precedence.
func WithTransportFactory(factory TransportFactory) Option {
	return func(b *serviceBuilder) {
		b.transportFactory = factory
	}
}

func WithSleeper(sleeper Sleeper) Option {
	return func(b *serviceBuilder) {
		b.sleeper = sleeper
	}
}

func WithApplicationStore(store ApplicationStore) Option {
	return func(b *serviceBuilder) {
		b.applicationStore = store
	}
}

func WithAccountStore(store AccountStore) Option {
	return func(b *serviceBuilder) {
		b.accountStore = store
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	return serviceBuilder{
		runtimeConfig:   runtime,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		sleeper:         TimerSleeper{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}
