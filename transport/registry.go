package transport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-fediauth/core"
)

// Factory builds a transport from a loose config map. Recognised keys are
// "client" (HTTPDoer), "user_agent" (string) and "max_response_body_bytes"
// (int64), plus "reason" for unsupported kinds.
type Factory func(config map[string]any) (core.Transport, error)

type Registry struct {
	mu         sync.RWMutex
	transports map[string]core.Transport
	factories  map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		transports: map[string]core.Transport{},
		factories:  map[string]Factory{},
	}
}

// NewDefaultRegistry knows the json kind and the binary kind, which always
// fails as unsupported.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.RegisterFactory(KindJSON, jsonFactory)
	_ = registry.RegisterFactory(KindBinary, unsupportedFactory(KindBinary))
	return registry
}

func (r *Registry) Register(transport core.Transport) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	if transport == nil {
		return fmt.Errorf("transport: transport is nil")
	}
	kind := normalizeKind(transport.Kind())
	if kind == "" {
		return fmt.Errorf("transport: transport kind is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transports[kind]; exists {
		return fmt.Errorf("transport: transport kind %q already registered", kind)
	}
	r.transports[kind] = transport
	return nil
}

func (r *Registry) RegisterFactory(kind string, factory Factory) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return fmt.Errorf("transport: transport kind is required")
	}
	if factory == nil {
		return fmt.Errorf("transport: transport factory is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("transport: transport factory kind %q already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Build returns the registered instance for kind, or builds one with the
// kind's factory.
func (r *Registry) Build(kind string, config map[string]any) (core.Transport, error) {
	if r == nil {
		return nil, fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return nil, fmt.Errorf("transport: transport kind is required")
	}

	r.mu.RLock()
	transport, ok := r.transports[kind]
	factory := r.factories[kind]
	r.mu.RUnlock()
	if ok {
		return transport, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("transport: transport kind %q not registered", kind)
	}
	built, err := factory(cloneMap(config))
	if err != nil {
		return nil, err
	}
	if built == nil {
		return nil, fmt.Errorf("transport: factory for %q returned nil transport", kind)
	}
	return built, nil
}

func (r *Registry) Get(kind string) (core.Transport, bool) {
	if r == nil {
		return nil, false
	}
	kind = normalizeKind(kind)
	r.mu.RLock()
	defer r.mu.RUnlock()
	transport, ok := r.transports[kind]
	return transport, ok
}

func (r *Registry) List() []core.Transport {
	if r == nil {
		return []core.Transport{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.transports))
	for kind := range r.transports {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	result := make([]core.Transport, 0, len(kinds))
	for _, kind := range kinds {
		result = append(result, r.transports[kind])
	}
	return result
}

// ConfigMap turns the transport related fields of cfg into a factory config.
func ConfigMap(cfg core.Config) map[string]any {
	out := map[string]any{}
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		out["user_agent"] = ua
	}
	if cfg.MaxResponseBodyBytes > 0 {
		out["max_response_body_bytes"] = cfg.MaxResponseBodyBytes
	}
	return out
}

func jsonFactory(config map[string]any) (core.Transport, error) {
	var client HTTPDoer
	if raw, ok := config["client"]; ok && raw != nil {
		doer, ok := raw.(HTTPDoer)
		if !ok {
			return nil, fmt.Errorf("transport: client must implement Do(*http.Request), got %T", raw)
		}
		client = doer
	}
	transport := NewJSONTransport(client)
	if ua, ok := config["user_agent"].(string); ok && strings.TrimSpace(ua) != "" {
		transport.DefaultHeaders["User-Agent"] = strings.TrimSpace(ua)
	}
	switch limit := config["max_response_body_bytes"].(type) {
	case int64:
		transport.MaxResponseBodyBytes = limit
	case int:
		transport.MaxResponseBodyBytes = int64(limit)
	}
	return transport, nil
}

func unsupportedFactory(kind string) Factory {
	return func(config map[string]any) (core.Transport, error) {
		reason, _ := config["reason"].(string)
		return NewUnsupportedTransport(kind, reason), nil
	}
}

func normalizeKind(kind string) string {
	return strings.TrimSpace(strings.ToLower(kind))
}

func cloneMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

var _ HTTPDoer = (*http.Client)(nil)
