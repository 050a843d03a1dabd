package sqlstore

import (
	"github.com/goliatone/go-fediauth/core"
	"github.com/goliatone/go-fediauth/ratelimit"
)

var (
	_ core.ApplicationStore = (*ApplicationStore)(nil)
	_ core.AccountStore     = (*AccountStore)(nil)
	_ ratelimit.StateStore  = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore  = (*CachedRateLimitStateStore)(nil)
)
