package sqlstore

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goliatone/go-fediauth/core"
	"github.com/goliatone/go-fediauth/ratelimit"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const rateLimitStateCacheKeyPrefix = "go-fediauth::ratelimit_state::v1"

// CachedRateLimitStateStore is a read-through cache in front of another
// StateStore. Writes go to the base store first and then drop the entry.
type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(base ratelimit.StateStore, cacheService repositorycache.CacheService) (*CachedRateLimitStateStore, error) {
	switch {
	case base == nil:
		return nil, configError("sqlstore: base rate-limit state store is required", nil)
	case cacheService == nil:
		return nil, configError("sqlstore: rate-limit cache service is required", nil)
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey formats prefix::host::bucket with the normalized,
// path-escaped key segments.
func RateLimitStateCacheKey(key core.RateLimitKey) (string, error) {
	key, err := checkedRateLimitKey(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s::%s::%s", rateLimitStateCacheKeyPrefix,
		url.PathEscape(key.Host), url.PathEscape(key.BucketKey)), nil
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if err := s.ready(); err != nil {
		return ratelimit.State{}, err
	}
	key = ratelimit.NormalizeKey(key)
	cacheKey, err := RateLimitStateCacheKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}
	state, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (ratelimit.State, error) {
		return s.base.Get(ctx, key)
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return state.Clone(), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if err := s.ready(); err != nil {
		return err
	}
	cacheKey, err := RateLimitStateCacheKey(state.Key)
	if err != nil {
		return err
	}
	state.Key = ratelimit.NormalizeKey(state.Key)
	if err := s.base.Upsert(ctx, state.Clone()); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedRateLimitStateStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return configError("sqlstore: cached rate-limit state store is not configured", nil)
	}
	return nil
}
