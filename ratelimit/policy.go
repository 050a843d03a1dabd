package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-fediauth/core"
)

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = time.Minute
)

type PolicyOption func(*AdaptivePolicy)

func WithClock(now func() time.Time) PolicyOption {
	return func(p *AdaptivePolicy) {
		if now != nil {
			p.now = now
		}
	}
}

// WithBackoff sets the window used after consecutive throttled responses that
// carry no delay hint. It doubles per attempt up to max.
func WithBackoff(initial time.Duration, max time.Duration) PolicyOption {
	return func(p *AdaptivePolicy) {
		if initial > 0 {
			p.initialBackoff = initial
		}
		if max > 0 {
			p.maxBackoff = max
		}
	}
}

// AdaptivePolicy remembers quota hints per host and endpoint. A throttled
// response opens a window during which BeforeCall refuses further calls.
type AdaptivePolicy struct {
	store          StateStore
	now            func() time.Time
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore, opts ...PolicyOption) *AdaptivePolicy {
	policy := &AdaptivePolicy{
		store:          store,
		now:            time.Now,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(policy)
		}
	}
	if policy.maxBackoff < policy.initialBackoff {
		policy.maxBackoff = policy.initialBackoff
	}
	return policy
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key core.RateLimitKey) error {
	if p == nil || p.store == nil {
		return nil
	}
	state, err := p.store.Get(ctx, NormalizeKey(key))
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := p.clock()
	until := state.ThrottledUntil
	if until == nil && state.Remaining <= 0 && state.Limit > 0 {
		until = state.ResetAt
	}
	if until != nil && now.Before(*until) {
		return ThrottledError{Host: state.Key.Host, BucketKey: state.Key.BucketKey, RetryAfter: until.Sub(now)}
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, key core.RateLimitKey, res core.ResponseMeta) error {
	if p == nil || p.store == nil {
		return nil
	}
	key = NormalizeKey(key)
	state, err := p.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Key: key, Metadata: map[string]any{}}
	case err != nil:
		return err
	}
	if state.Metadata == nil {
		state.Metadata = map[string]any{}
	}

	now := p.clock()
	hints := ParseHints(res, now)
	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.RetryAfter = hints.RetryAfter
	if hints.Limit != nil {
		state.Limit = *hints.Limit
	}
	if hints.Remaining != nil {
		state.Remaining = *hints.Remaining
	}
	if hints.ResetAt != nil {
		state.ResetAt = hints.ResetAt
	}
	for name, value := range res.Metadata {
		state.Metadata[name] = value
	}
	if hints.RemoteCode != "" {
		state.Metadata["remote_code"] = hints.RemoteCode
	} else {
		delete(state.Metadata, "remote_code")
	}

	if !hints.Throttles(res.StatusCode) {
		state.Attempts = 0
		state.ThrottledUntil = nil
		return p.store.Upsert(ctx, state)
	}

	state.Attempts++
	delay, ok := hints.Delay(now)
	if !ok {
		delay = p.backoff(state.Attempts)
	}
	until := now.Add(delay)
	state.ThrottledUntil = &until
	return p.store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) clock() time.Time {
	if p.now == nil {
		return time.Now().UTC()
	}
	return p.now().UTC()
}

func (p *AdaptivePolicy) backoff(attempt int) time.Duration {
	delay := p.initialBackoff
	for i := 1; i < attempt && delay < p.maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, p.maxBackoff)
}

var _ core.RateLimitPolicy = (*AdaptivePolicy)(nil)
