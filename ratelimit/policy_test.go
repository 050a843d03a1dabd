package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestPolicy(store StateStore, opts ...PolicyOption) (*AdaptivePolicy, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	all := append([]PolicyOption{WithClock(clock.Now)}, opts...)
	return NewAdaptivePolicy(store, all...), clock
}

var notesKey = core.RateLimitKey{Host: "misskey.example", BucketKey: "notes/create"}

func TestAdaptivePolicy_AllowsWithoutState(t *testing.T) {
	policy, _ := newTestPolicy(NewMemoryStateStore())
	if err := policy.BeforeCall(context.Background(), notesKey); err != nil {
		t.Fatalf("expected call to be allowed, got %v", err)
	}
	var nilPolicy *AdaptivePolicy
	if err := nilPolicy.BeforeCall(context.Background(), notesKey); err != nil {
		t.Fatalf("expected nil policy to allow, got %v", err)
	}
}

func TestAdaptivePolicy_PersistsQuotaHints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	policy, clock := newTestPolicy(store)

	err := policy.AfterCall(ctx, notesKey, core.ResponseMeta{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "300",
			"X-RateLimit-Remaining": "299",
			"X-RateLimit-Reset":     "45",
		},
		Metadata: map[string]any{"endpoint": "notes/create"},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(ctx, notesKey)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Limit != 300 || state.Remaining != 299 || state.LastStatus != http.StatusOK {
		t.Fatalf("unexpected state: %#v", state)
	}
	if state.ResetAt == nil || !state.ResetAt.Equal(clock.now.Add(45*time.Second)) {
		t.Fatalf("unexpected reset at %v", state.ResetAt)
	}
	if state.ThrottledUntil != nil {
		t.Fatalf("expected no throttle window")
	}
	if state.Metadata["endpoint"] != "notes/create" {
		t.Fatalf("expected response metadata to be kept, got %#v", state.Metadata)
	}
}

func TestAdaptivePolicy_ThrottlesOnRemoteRateLimitEnvelope(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	policy, clock := newTestPolicy(store)

	if err := policy.AfterCall(ctx, notesKey, core.ResponseMeta{
		StatusCode: http.StatusTooManyRequests,
		Body:       core.Value(`{"error":{"message":"Rate limit exceeded.","code":"RATE_LIMIT_EXCEEDED","info":{"resetMs":20000}}}`),
	}); err != nil {
		t.Fatalf("after call: %v", err)
	}

	err := policy.BeforeCall(ctx, notesKey)
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if throttled.RetryAfter != 20*time.Second {
		t.Fatalf("expected 20s window, got %s", throttled.RetryAfter)
	}
	state, _ := store.Get(ctx, notesKey)
	if state.Attempts != 1 || state.Metadata["remote_code"] != RemoteCodeRateLimited {
		t.Fatalf("unexpected state: %#v", state)
	}

	if err := policy.BeforeCall(ctx, core.RateLimitKey{Host: "misskey.example", BucketKey: "i"}); err != nil {
		t.Fatalf("expected other endpoint to stay open, got %v", err)
	}
	clock.now = clock.now.Add(21 * time.Second)
	if err := policy.BeforeCall(ctx, notesKey); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestAdaptivePolicy_BackoffWithoutHints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	policy, clock := newTestPolicy(store, WithBackoff(2*time.Second, 5*time.Second))

	expected := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for attempt, want := range expected {
		if err := policy.AfterCall(ctx, notesKey, core.ResponseMeta{StatusCode: http.StatusTooManyRequests}); err != nil {
			t.Fatalf("after call %d: %v", attempt+1, err)
		}
		state, _ := store.Get(ctx, notesKey)
		if state.Attempts != attempt+1 {
			t.Fatalf("expected attempts=%d, got %d", attempt+1, state.Attempts)
		}
		if got := state.ThrottledUntil.Sub(clock.now); got != want {
			t.Fatalf("attempt %d: expected %s window, got %s", attempt+1, want, got)
		}
	}
}

func TestAdaptivePolicy_SuccessClearsThrottle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	policy, _ := newTestPolicy(store)

	if err := policy.AfterCall(ctx, notesKey, core.ResponseMeta{StatusCode: http.StatusTooManyRequests}); err != nil {
		t.Fatalf("throttled call: %v", err)
	}
	if err := policy.AfterCall(ctx, notesKey, core.ResponseMeta{StatusCode: http.StatusOK}); err != nil {
		t.Fatalf("successful call: %v", err)
	}
	state, _ := store.Get(ctx, notesKey)
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected cleared throttle state, got %#v", state)
	}
	if err := policy.BeforeCall(ctx, notesKey); err != nil {
		t.Fatalf("expected call to be allowed, got %v", err)
	}
}

func TestAdaptivePolicy_ServerErrorsDoNotThrottle(t *testing.T) {
	ctx := context.Background()
	policy, _ := newTestPolicy(NewMemoryStateStore())
	if err := policy.AfterCall(ctx, notesKey, core.ResponseMeta{StatusCode: http.StatusServiceUnavailable}); err != nil {
		t.Fatalf("after call: %v", err)
	}
	if err := policy.BeforeCall(ctx, notesKey); err != nil {
		t.Fatalf("expected 5xx to leave the endpoint open, got %v", err)
	}
}

func TestAdaptivePolicy_KeysIgnoreCaseAndSlashes(t *testing.T) {
	ctx := context.Background()
	policy, _ := newTestPolicy(NewMemoryStateStore())
	if err := policy.AfterCall(ctx, core.RateLimitKey{Host: "Misskey.Example", BucketKey: "/Notes/Create/"}, core.ResponseMeta{StatusCode: http.StatusTooManyRequests}); err != nil {
		t.Fatalf("after call: %v", err)
	}
	var throttled ThrottledError
	if err := policy.BeforeCall(ctx, notesKey); !errors.As(err, &throttled) {
		t.Fatalf("expected normalized key to be throttled, got %v", err)
	}
	if throttled.Host != "misskey.example" || throttled.BucketKey != "notes/create" {
		t.Fatalf("unexpected throttled key %s %s", throttled.Host, throttled.BucketKey)
	}
}

func TestThrottledError_ToServiceError(t *testing.T) {
	mapped := ThrottledError{Host: "misskey.example", BucketKey: "notes/create", RetryAfter: 3 * time.Second}.ToServiceError()
	if mapped.TextCode != core.ErrorRateLimited || mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected envelope %q %d", mapped.TextCode, mapped.Code)
	}
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %s", mapped.Category)
	}
	if mapped.Metadata["retry_after_ms"] != int64(3000) {
		t.Fatalf("unexpected metadata %#v", mapped.Metadata)
	}
}

type failingStore struct{ err error }

func (s failingStore) Get(context.Context, core.RateLimitKey) (State, error) { return State{}, s.err }
func (s failingStore) Upsert(context.Context, State) error                   { return s.err }

func TestAdaptivePolicy_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store down")
	policy, _ := newTestPolicy(failingStore{err: boom})
	if err := policy.BeforeCall(context.Background(), notesKey); !errors.Is(err, boom) {
		t.Fatalf("expected store error from BeforeCall, got %v", err)
	}
	if err := policy.AfterCall(context.Background(), notesKey, core.ResponseMeta{StatusCode: 200}); !errors.Is(err, boom) {
		t.Fatalf("expected store error from AfterCall, got %v", err)
	}
}
