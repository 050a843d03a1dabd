package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-fediauth/core"
)

// RemoteCodeRateLimited is the error code the server puts in its error
// envelope when a per-endpoint limit is hit.
const RemoteCodeRateLimited = "RATE_LIMIT_EXCEEDED"

// X-RateLimit-Reset values above this are unix timestamps; smaller values
// are seconds from now.
const unixResetThreshold = 1_000_000_000

// Hints is what a single response reveals about the caller's quota. Nil
// fields were not reported.
type Hints struct {
	Limit      *int
	Remaining  *int
	ResetAt    *time.Time
	RetryAfter *time.Duration
	RemoteCode string
}

// ParseHints reads X-RateLimit-*, Retry-After and the error envelope of res.
// An explicit res.RetryAfter wins over the header, which wins over the
// envelope's info.resetMs.
func ParseHints(res core.ResponseMeta, now time.Time) Hints {
	hints := Hints{}
	if value, ok := headerInt(res.Headers, "X-RateLimit-Limit"); ok {
		hints.Limit = &value
	}
	if value, ok := headerInt(res.Headers, "X-RateLimit-Remaining"); ok {
		hints.Remaining = &value
	}
	if raw := header(res.Headers, "X-RateLimit-Reset"); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			var resetAt time.Time
			if seconds > unixResetThreshold {
				resetAt = time.Unix(int64(seconds), 0).UTC()
			} else {
				resetAt = now.Add(secondsToDuration(seconds))
			}
			hints.ResetAt = &resetAt
		}
	}

	code, resetMS := remoteEnvelope(res.Body)
	hints.RemoteCode = code

	switch {
	case res.RetryAfter != nil && *res.RetryAfter > 0:
		value := *res.RetryAfter
		hints.RetryAfter = &value
	case header(res.Headers, "Retry-After") != "":
		if value, ok := parseRetryAfter(header(res.Headers, "Retry-After"), now); ok {
			hints.RetryAfter = &value
		}
	case resetMS > 0:
		value := time.Duration(resetMS * float64(time.Millisecond))
		hints.RetryAfter = &value
	}
	return hints
}

// Throttles reports whether a response with status and these hints must
// open a throttle window. Server errors never do.
func (h Hints) Throttles(status int) bool {
	if status >= 500 {
		return false
	}
	if status == http.StatusTooManyRequests || h.RemoteCode == RemoteCodeRateLimited {
		return true
	}
	return h.Remaining != nil && *h.Remaining <= 0
}

// Delay returns how long to stay away according to the response itself.
func (h Hints) Delay(now time.Time) (time.Duration, bool) {
	if h.RetryAfter != nil && *h.RetryAfter > 0 {
		return *h.RetryAfter, true
	}
	if h.ResetAt != nil && h.ResetAt.After(now) {
		return h.ResetAt.Sub(now), true
	}
	return 0, false
}

func parseRetryAfter(raw string, now time.Time) (time.Duration, bool) {
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return secondsToDuration(seconds), true
	}
	at, err := http.ParseTime(raw)
	if err != nil || !at.After(now) {
		return 0, false
	}
	return at.Sub(now), true
}

func remoteEnvelope(body core.Value) (string, float64) {
	if len(body) == 0 {
		return "", 0
	}
	var payload struct {
		Error *struct {
			Code string `json:"code"`
			Info struct {
				ResetMS float64 `json:"resetMs"`
			} `json:"info"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return "", 0
	}
	return strings.TrimSpace(payload.Error.Code), payload.Error.Info.ResetMS
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
}

func header(headers map[string]string, name string) string {
	if value, ok := headers[name]; ok {
		return strings.TrimSpace(value)
	}
	for key, value := range headers {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func headerInt(headers map[string]string, name string) (int, bool) {
	raw := header(headers, name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
