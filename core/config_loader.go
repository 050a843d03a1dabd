package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// ConfigProvider loads the host's configuration on top of defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

// RawConfigLoader yields an untyped tree keyed like Config's koanf tags.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges defaults, loaded config and the Config passed to
// NewService, in increasing priority.
type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader map[string]any

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l))
	for key, value := range l {
		out[key] = value
	}
	return out, nil
}

// NewStaticRawConfigLoader serves a fixed map, typically decoded from a
// host application's own config file.
func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader(values)
}

// CfgxConfigProvider decodes and validates a raw tree with go-config.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil || p.Loader == nil {
		return defaults, nil
	}
	raw, err := p.Loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, fmt.Errorf("core: load raw config: %w", err)
	}
	return buildConfig(raw, defaults)
}

// GoOptionsResolver layers the three configs with go-options scopes so that
// a zero runtime field never hides a loaded value.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), configLayer(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), configLayer(loaded, false),
			opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), configLayer(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	return buildConfig(merged.Value, defaults)
}

func buildConfig(raw map[string]any, defaults Config) (Config, error) {
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configLayer flattens cfg into koanf keys. Unless includeZero is set, unset
// fields are left out so they do not override lower layers.
func configLayer(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	put := func(key string, value any, set bool) {
		if includeZero || set {
			layer[key] = value
		}
	}
	put("service_name", cfg.ServiceName, strings.TrimSpace(cfg.ServiceName) != "")
	put("poll_interval_ms", cfg.PollIntervalMS, cfg.PollIntervalMS != 0)
	put("request_timeout_ms", cfg.RequestTimeoutMS, cfg.RequestTimeoutMS != 0)
	put("max_response_body_bytes", cfg.MaxResponseBodyBytes, cfg.MaxResponseBodyBytes != 0)
	put("user_agent", cfg.UserAgent, strings.TrimSpace(cfg.UserAgent) != "")
	put("transport", map[string]any{"kind": cfg.Transport.Kind}, strings.TrimSpace(cfg.Transport.Kind) != "")
	return layer
}
