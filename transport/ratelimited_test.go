package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
	"github.com/goliatone/go-fediauth/ratelimit"
)

func TestRateLimitedTransport_ThrottlesAfter429(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/api/notes/create" {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit exceeded.","code":"RATE_LIMIT_EXCEEDED"}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	host := strings.TrimPrefix(server.URL, "https://")

	now := time.Unix(1_700_000_000, 0).UTC()
	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore(), ratelimit.WithClock(func() time.Time { return now }))
	transport := NewRateLimitedTransport(NewJSONTransport(server.Client()), policy)

	res, err := transport.Request(context.Background(), core.Request{Host: host, Endpoint: "notes/create"})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 to pass through, got %d", res.StatusCode)
	}

	_, err = transport.Request(context.Background(), core.Request{Host: host, Endpoint: "notes/create"})
	var throttled ratelimit.ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if throttled.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry hint, got %s", throttled.RetryAfter)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected throttled call to skip the network, got %d hits", hits.Load())
	}

	if _, err := transport.Request(context.Background(), core.Request{Host: host, Endpoint: "i"}); err != nil {
		t.Fatalf("expected other endpoint to stay open, got %v", err)
	}

	now = now.Add(31 * time.Second)
	if _, err := transport.Request(context.Background(), core.Request{Host: host, Endpoint: "notes/create"}); err != nil {
		t.Fatalf("expected throttle window to expire, got %v", err)
	}
}

func TestRateLimitedTransport_ThrottledErrorMapsToRateLimited(t *testing.T) {
	store := ratelimit.NewMemoryStateStore()
	until := time.Now().UTC().Add(time.Minute)
	if err := store.Upsert(context.Background(), ratelimit.State{
		Key:            core.RateLimitKey{Host: "misskey.example", BucketKey: "meta"},
		ThrottledUntil: &until,
	}); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	transport := NewRateLimitedTransport(staticTransport{kind: "json"}, ratelimit.NewAdaptivePolicy(store))

	svc, err := core.NewService(core.Config{}, core.WithTransport(transport))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.Dispatch(context.Background(), core.Request{Host: "misskey.example", Endpoint: "meta"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %v", err)
	}
	if rich.TextCode != core.ErrorRateLimited || rich.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limited envelope, got %q %d", rich.TextCode, rich.Code)
	}
}

func TestRateLimitedTransport_PassesThroughWithoutPolicy(t *testing.T) {
	transport := NewRateLimitedTransport(staticTransport{kind: "json"}, nil)
	if transport.Kind() != "json" {
		t.Fatalf("expected delegate kind, got %q", transport.Kind())
	}
	if _, err := transport.Request(context.Background(), core.Request{Host: "misskey.example", Endpoint: "meta"}); err != nil {
		t.Fatalf("request: %v", err)
	}
}
