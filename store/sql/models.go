package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	secretFormatSealed = "sealed"
	secretFormatPlain  = "plain"
)

type applicationRecord struct {
	bun.BaseModel `bun:"table:fediauth_applications,alias:fa"`

	ID                string    `bun:"id,pk"`
	Host              string    `bun:"host,notnull"`
	Name              string    `bun:"name,notnull"`
	Description       string    `bun:"description,notnull"`
	Permissions       []string  `bun:"permissions,type:jsonb,notnull"`
	CallbackURL       string    `bun:"callback_url,notnull"`
	EncryptedSecret   []byte    `bun:"encrypted_secret,notnull"`
	SecretFormat      string    `bun:"secret_format,notnull"`
	SecretFingerprint string    `bun:"secret_fingerprint,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type accountRecord struct {
	bun.BaseModel `bun:"table:fediauth_accounts,alias:fac"`

	ID               string    `bun:"id,pk"`
	ApplicationID    string    `bun:"application_id,notnull"`
	Host             string    `bun:"host,notnull"`
	Label            string    `bun:"label,notnull"`
	EncryptedToken   []byte    `bun:"encrypted_token,notnull"`
	TokenFormat      string    `bun:"token_format,notnull"`
	TokenFingerprint string    `bun:"token_fingerprint,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:fediauth_rate_limit_state,alias:frl"`

	ID             string         `bun:"id,pk"`
	Host           string         `bun:"host,notnull"`
	BucketKey      string         `bun:"bucket_key,notnull"`
	Limit          int            `bun:"quota_limit,notnull"`
	Remaining      int            `bun:"quota_remaining,notnull"`
	ResetAt        *time.Time     `bun:"reset_at,nullzero"`
	RetryAfterMS   *int64         `bun:"retry_after_ms"`
	ThrottledUntil *time.Time     `bun:"throttled_until,nullzero"`
	LastStatus     int            `bun:"last_status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
