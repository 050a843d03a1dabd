package transport

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

// RateLimitedTransport consults a RateLimitPolicy around every call. The
// policy is keyed by host and endpoint, so one throttled endpoint does not
// block the rest of the host.
type RateLimitedTransport struct {
	Next   core.Transport
	Policy core.RateLimitPolicy
}

func NewRateLimitedTransport(next core.Transport, policy core.RateLimitPolicy) *RateLimitedTransport {
	return &RateLimitedTransport{Next: next, Policy: policy}
}

func (t *RateLimitedTransport) Kind() string {
	if t == nil || t.Next == nil {
		return ""
	}
	return t.Next.Kind()
}

func (t *RateLimitedTransport) Request(ctx context.Context, req core.Request) (core.Response, error) {
	if t == nil || t.Next == nil {
		return core.Response{}, transportError(
			"transport: rate limited transport requires a delegate",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if req.Binary || t.Policy == nil {
		return t.Next.Request(ctx, req)
	}

	key := core.RateLimitKey{Host: req.Host, BucketKey: req.Endpoint}
	if err := t.Policy.BeforeCall(ctx, key); err != nil {
		return core.Response{}, err
	}

	res, callErr := t.Next.Request(ctx, req)
	if res.StatusCode == 0 {
		return res, callErr
	}
	if err := t.Policy.AfterCall(ctx, key, core.ResponseMeta{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
		Metadata:   map[string]any{"endpoint": req.Endpoint},
	}); err != nil && callErr == nil {
		return res, err
	}
	return res, callErr
}

var _ core.Transport = (*RateLimitedTransport)(nil)
