package fediauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-fediauth/core"
	"github.com/goliatone/go-fediauth/ratelimit"
)

type instantSleeper struct{}

func (instantSleeper) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// misskeyServer fakes the auth endpoints of one instance. The first userkey
// check is answered as pending.
type misskeyServer struct {
	mu        sync.Mutex
	checks    int
	lastI     string
	endpoints []string
}

func (m *misskeyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	endpoint := strings.TrimPrefix(r.URL.Path, "/api/")

	m.mu.Lock()
	m.endpoints = append(m.endpoints, endpoint)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch endpoint {
	case core.EndpointAppCreate:
		_, _ = w.Write([]byte(`{"id":"app1","secret":"app-secret"}`))
	case core.EndpointSessionGenerate:
		_, _ = w.Write([]byte(`{"token":"session-token","url":"https://misskey.example/auth/session-token"}`))
	case core.EndpointSessionUserKey:
		m.mu.Lock()
		m.checks++
		checks := m.checks
		m.mu.Unlock()
		if checks == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"PENDING_SESSION","message":"pending"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"accessToken":"user-token","user":{"id":"u1","username":"alice"}}`))
	case "i":
		m.mu.Lock()
		m.lastI, _ = payload["i"].(string)
		m.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"u1","username":"alice"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NO_SUCH_ENDPOINT","message":"no such endpoint"}}`))
	}
}

func newTLSService(t *testing.T, handler http.Handler, policy core.RateLimitPolicy) (*Service, string) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(DefaultConfig(), WithDefaultTransport(server.Client(), policy), WithSleeper(instantSleeper{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, server.Listener.Addr().String()
}

func TestNewService_UsesJSONTransportByDefault(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if kind := svc.Dependencies().Transport.Kind(); kind != core.TransportKindJSON {
		t.Fatalf("expected json transport, got %q", kind)
	}
}

// userAgentServer answers every call with an empty object and keeps the
// User-Agent of the last request.
type userAgentServer struct {
	mu        sync.Mutex
	userAgent string
}

func (u *userAgentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.userAgent = r.Header.Get("User-Agent")
	u.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{}`))
}

func (u *userAgentServer) last() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.userAgent
}

func requestUserAgent(t *testing.T, cfg Config, opts ...Option) string {
	t.Helper()
	fake := &userAgentServer{}
	server := httptest.NewTLSServer(fake)
	defer server.Close()

	all := append([]Option{WithDefaultTransport(server.Client(), nil)}, opts...)
	svc, err := NewService(cfg, all...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	app, err := RestoreApplication(server.Listener.Addr().String(), "app-secret")
	if err != nil {
		t.Fatalf("restore application: %v", err)
	}
	account, err := svc.RestoreAccount(app, "user-token")
	if err != nil {
		t.Fatalf("restore account: %v", err)
	}
	if _, err := account.Request(context.Background(), "i", nil); err != nil {
		t.Fatalf("account request: %v", err)
	}
	return fake.last()
}

func TestNewService_LoadedUserAgentReachesTheWire(t *testing.T) {
	loader := core.NewStaticRawConfigLoader(map[string]any{"user_agent": "loaded-agent/1"})
	got := requestUserAgent(t, Config{}, WithConfigProvider(core.NewCfgxConfigProvider(loader)))
	if got != "loaded-agent/1" {
		t.Fatalf("expected loaded user agent on the wire, got %q", got)
	}
}

func TestNewService_DefaultUserAgentWithEmptyRuntimeConfig(t *testing.T) {
	if got := requestUserAgent(t, Config{}); got != "go-fediauth" {
		t.Fatalf("expected default user agent on the wire, got %q", got)
	}
}

func TestNewService_RuntimeUserAgentOverridesLoaded(t *testing.T) {
	loader := core.NewStaticRawConfigLoader(map[string]any{"user_agent": "loaded-agent/1"})
	got := requestUserAgent(t, Config{UserAgent: "runtime-agent/2"}, WithConfigProvider(core.NewCfgxConfigProvider(loader)))
	if got != "runtime-agent/2" {
		t.Fatalf("expected runtime user agent on the wire, got %q", got)
	}
}

func TestNewDefaultTransport_BinaryKindIsUnsupported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.Kind = core.TransportKindBinary
	tr, err := NewDefaultTransport(cfg, nil, nil)
	if err != nil {
		t.Fatalf("new default transport: %v", err)
	}
	_, err = tr.Request(context.Background(), core.Request{Host: "misskey.example", Endpoint: "drive/files/create"})
	if err == nil {
		t.Fatalf("expected unsupported transport error")
	}
}

func TestEndToEndAuthorizationOverHTTPS(t *testing.T) {
	ctx := context.Background()
	fake := &misskeyServer{}
	svc, host := newTLSService(t, fake, ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()))

	app, err := svc.RegisterApplication(ctx, RegisterApplicationRequest{
		Host:        host,
		Name:        "fediauth",
		Description: "integration test",
		Permissions: []string{"read:account"},
	})
	if err != nil {
		t.Fatalf("register application: %v", err)
	}
	if app.Secret != "app-secret" {
		t.Fatalf("unexpected application secret %q", app.Secret)
	}

	session, err := svc.GenerateSession(ctx, app)
	if err != nil {
		t.Fatalf("generate session: %v", err)
	}
	if session.Token != "session-token" {
		t.Fatalf("unexpected session token %q", session.Token)
	}

	account, err := session.WaitForAuthorization(ctx)
	if err != nil {
		t.Fatalf("wait for authorization: %v", err)
	}
	expected := DeriveSigningCredential("app-secret", "user-token")
	if account.SigningCredential() != expected {
		t.Fatalf("unexpected signing credential %q", account.SigningCredential())
	}

	body, err := account.Request(ctx, "i", nil)
	if err != nil {
		t.Fatalf("account request: %v", err)
	}
	if !strings.Contains(body.String(), `"alice"`) {
		t.Fatalf("unexpected body %s", body.String())
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.lastI != expected {
		t.Fatalf("expected i=%q on the wire, got %q", expected, fake.lastI)
	}
	if fake.checks != 2 {
		t.Fatalf("expected two userkey checks, got %d", fake.checks)
	}
}

func TestAccountRequest_RemoteErrorIsProtocolError(t *testing.T) {
	svc, host := newTLSService(t, &misskeyServer{}, nil)
	app, err := RestoreApplication(host, "app-secret")
	if err != nil {
		t.Fatalf("restore application: %v", err)
	}
	account, err := svc.RestoreAccount(app, "user-token")
	if err != nil {
		t.Fatalf("restore account: %v", err)
	}
	if _, err := account.Request(context.Background(), "unknown/endpoint", Params{P("limit", 10)}); err == nil {
		t.Fatalf("expected remote error for unknown endpoint")
	}
}

func TestWaitForAuthorization_ServerErrorOverHTTPSEndsPolling(t *testing.T) {
	var mu sync.Mutex
	checks := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		checks++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"boom"}}`))
	})
	svc, host := newTLSService(t, handler, nil)
	app, err := RestoreApplication(host, "app-secret")
	if err != nil {
		t.Fatalf("restore application: %v", err)
	}
	session, err := svc.RestoreSession(app, "session-token", "https://"+host+"/auth/session-token")
	if err != nil {
		t.Fatalf("restore session: %v", err)
	}

	_, err = session.WaitForAuthorization(context.Background())
	if !core.IsProtocolError(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if checks != 1 {
		t.Fatalf("expected a single userkey check, got %d", checks)
	}
}
