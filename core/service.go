package core

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service routes every protocol call through one injected Transport. It
// holds no per-session state and is safe for concurrent use.
type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	transport        Transport
	sleeper          Sleeper
	applicationStore ApplicationStore
	accountStore     AccountStore
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	Transport        Transport
	Sleeper          Sleeper
	ApplicationStore ApplicationStore
	AccountStore     AccountStore
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("fediauth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("fediauth"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.sleeper == nil {
		builder.sleeper = TimerSleeper{}
	}
	if builder.transport == nil && builder.transportFactory == nil {
		return nil, mapBuildError(builder.errorMapper, newInternalError("core: transport is required"))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.transport == nil {
		built, buildErr := builder.transportFactory(finalConfig)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if built == nil {
			return nil, mapBuildError(builder.errorMapper, newInternalError("core: transport factory returned no transport"))
		}
		builder.transport = built
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		transport:        builder.transport,
		sleeper:          builder.sleeper,
		applicationStore: builder.applicationStore,
		accountStore:     builder.accountStore,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorMapper:      s.errorMapper,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		Transport:        s.transport,
		Sleeper:          s.sleeper,
		ApplicationStore: s.applicationStore,
		AccountStore:     s.accountStore,
	}
}

// Dispatch sends one request through the configured transport. A failure
// caused by ctx being cancelled is reported as a cancellation, never as a
// protocol error.
func (s *Service) Dispatch(ctx context.Context, req Request) (Response, error) {
	if s == nil || s.transport == nil {
		return Response{}, newInternalError("core: service transport is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req.Host = strings.TrimSpace(req.Host)
	req.Endpoint = strings.Trim(strings.TrimSpace(req.Endpoint), "/")
	if req.Host == "" {
		return Response{}, s.mapError(NewBadInputError("core: host is required"))
	}
	if req.Endpoint == "" {
		return Response{}, s.mapError(NewBadInputError("core: endpoint is required"))
	}
	if req.Binary {
		return Response{}, s.mapError(NewUnsupportedOperationError(
			"core: binary requests are not implemented",
			map[string]any{"host": req.Host, "endpoint": req.Endpoint},
		))
	}

	requestCtx := ctx
	cancel := func() {}
	if timeout := s.config.RequestTimeout(); timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	res, err := s.transport.Request(requestCtx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, NewCancelledError(ctxErr, map[string]any{"host": req.Host, "endpoint": req.Endpoint})
		}
		return res, s.mapError(err)
	}
	return res, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) pollInterval() time.Duration {
	if s == nil {
		return DefaultPollIntervalMS * time.Millisecond
	}
	return s.config.PollInterval()
}
