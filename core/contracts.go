package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Request is one JSON call against https://{Host}/api/{Endpoint}.
type Request struct {
	Host     string
	Endpoint string
	Params   Params
	Binary   bool
	Metadata map[string]any
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       Value
	Metadata   map[string]any
}

// Transport performs exactly one network call per Request. Implementations
// must reject Binary requests with an unsupported operation error before
// touching the network, and must not retry.
type Transport interface {
	Kind() string
	Request(ctx context.Context, req Request) (Response, error)
}

// Sleeper suspends between authorization polls. Sleep returns the context
// error when ctx is done before the duration elapses.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type RateLimitKey struct {
	Host      string
	BucketKey string
}

// ResponseMeta is what a rate limit policy sees of a response. Body is only
// inspected for the remote error envelope and is never persisted.
type ResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
	Body       Value
	Metadata   map[string]any
}

type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, key RateLimitKey) error
	AfterCall(ctx context.Context, key RateLimitKey, res ResponseMeta) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// StoredApplication is the persisted form of a registered Application plus
// the registration metadata used to create it.
type StoredApplication struct {
	ID          string
	Host        string
	Name        string
	Description string
	Permissions []string
	CallbackURL string
	Secret      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a StoredApplication) Application() Application {
	return Application{Host: a.Host, Secret: a.Secret}
}

type StoredAccount struct {
	ID            string
	ApplicationID string
	Host          string
	Label         string
	AccessToken   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ApplicationStore interface {
	Save(ctx context.Context, app StoredApplication) (StoredApplication, error)
	Get(ctx context.Context, id string) (StoredApplication, error)
	GetByHost(ctx context.Context, host string) (StoredApplication, error)
}

type AccountStore interface {
	Save(ctx context.Context, account StoredAccount) (StoredAccount, error)
	Get(ctx context.Context, id string) (StoredAccount, error)
	ListByApplication(ctx context.Context, applicationID string) ([]StoredAccount, error)
	Delete(ctx context.Context, id string) error
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
