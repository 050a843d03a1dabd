package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	TransportKindJSON   = "json"
	TransportKindBinary = "binary"

	DefaultPollIntervalMS             = 2000
	DefaultRequestTimeoutMS           = 30000
	DefaultMaxResponseBodyBytes int64 = 10 << 20 // 10 MiB
)

type TransportConfig struct {
	Kind string `koanf:"kind" mapstructure:"kind"`
}

type Config struct {
	ServiceName          string          `koanf:"service_name" mapstructure:"service_name"`
	PollIntervalMS       int64           `koanf:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	RequestTimeoutMS     int64           `koanf:"request_timeout_ms" mapstructure:"request_timeout_ms"`
	MaxResponseBodyBytes int64           `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
	UserAgent            string          `koanf:"user_agent" mapstructure:"user_agent"`
	Transport            TransportConfig `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "fediauth",
		PollIntervalMS:       DefaultPollIntervalMS,
		RequestTimeoutMS:     DefaultRequestTimeoutMS,
		MaxResponseBodyBytes: DefaultMaxResponseBodyBytes,
		UserAgent:            "go-fediauth",
		Transport:            TransportConfig{Kind: TransportKindJSON},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.PollIntervalMS < 0 {
		return fmt.Errorf("core: poll_interval_ms must not be negative")
	}
	if c.RequestTimeoutMS < 0 {
		return fmt.Errorf("core: request_timeout_ms must not be negative")
	}
	if c.MaxResponseBodyBytes < 0 {
		return fmt.Errorf("core: max_response_body_bytes must not be negative")
	}
	return nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// TransportKind falls back to the JSON transport when unset.
func (c Config) TransportKind() string {
	kind := strings.TrimSpace(strings.ToLower(c.Transport.Kind))
	if kind == "" {
		return TransportKindJSON
	}
	return kind
}
