package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-fediauth/core"
	"github.com/goliatone/go-fediauth/ratelimit"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithSecretProvider seals application secrets and user tokens at rest.
func WithSecretProvider(provider core.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secrets = provider
	}
}

// WithRateLimitCache fronts the rate limit state store with cacheService.
func WithRateLimitCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.rateLimitCache = cacheService
	}
}

type RepositoryFactory struct {
	db             *bun.DB
	secrets        core.SecretProvider
	rateLimitCache repositorycache.CacheService

	applicationStore    *ApplicationStore
	accountStore        *AccountStore
	rateLimitStateStore ratelimit.StateStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.Build(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.Build(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// Build resolves the bun handle from a *bun.DB or a persistence client and
// wires every store. Calling Build again is a no-op.
func (f *RepositoryFactory) Build(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.applicationStore != nil && f.accountStore != nil && f.rateLimitStateStore != nil {
		return nil
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ApplicationStore() core.ApplicationStore {
	if f == nil || f.applicationStore == nil {
		return nil
	}
	return f.applicationStore
}

func (f *RepositoryFactory) AccountStore() core.AccountStore {
	if f == nil || f.accountStore == nil {
		return nil
	}
	return f.accountStore
}

func (f *RepositoryFactory) RateLimitStateStore() ratelimit.StateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func (f *RepositoryFactory) initStores() error {
	applicationStore, err := NewApplicationStore(f.db, f.secrets)
	if err != nil {
		return err
	}
	accountStore, err := NewAccountStore(f.db, f.secrets)
	if err != nil {
		return err
	}
	rateLimitStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.applicationStore = applicationStore
	f.accountStore = accountStore
	f.rateLimitStateStore = rateLimitStore
	if f.rateLimitCache != nil {
		cached, cacheErr := NewCachedRateLimitStateStore(rateLimitStore, f.rateLimitCache)
		if cacheErr != nil {
			return cacheErr
		}
		f.rateLimitStateStore = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
