package ratelimit

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fediauth/core"
)

// ThrottledError is returned by BeforeCall while a host/endpoint pair is
// inside a throttle window. No request is sent.
type ThrottledError struct {
	Host       string
	BucketKey  string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: %s %s throttled for %s",
		strings.TrimSpace(e.Host), strings.TrimSpace(e.BucketKey), e.RetryAfter)
}

// ToServiceError lets the core error mapper turn the throttle into a
// FEDIAUTH_RATE_LIMITED error.
func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"host":       strings.TrimSpace(e.Host),
		"bucket_key": strings.TrimSpace(e.BucketKey),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorRateLimited).
		WithMetadata(metadata)
}
