package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-fediauth/core"
	"github.com/goliatone/go-fediauth/ratelimit"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RateLimitStateStore persists adaptive rate limit state so that several
// processes talking to the same hosts back off together.
type RateLimitStateStore struct {
	db   *bun.DB
	repo repository.Repository[*rateLimitStateRecord]
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, configError("sqlstore: bun db is required", nil)
	}
	repo := repository.NewRepository[*rateLimitStateRecord](db, rateLimitStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, wrapInternal(err, "sqlstore: rate-limit state repository", nil)
		}
	}
	return &RateLimitStateStore{db: db, repo: repo}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, configError("sqlstore: rate-limit state store is not configured", nil)
	}
	key, err := checkedRateLimitKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}
	record := new(rateLimitStateRecord)
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.host = ? AND ?TableAlias.bucket_key = ?", key.Host, key.BucketKey).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ratelimit.State{}, ratelimit.ErrStateNotFound
	}
	if err != nil {
		return ratelimit.State{}, err
	}
	return record.state(), nil
}

// Upsert replaces the row for state.Key. The row is updated in place when it
// exists and created through the repository otherwise.
func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil || s.repo == nil {
		return configError("sqlstore: rate-limit state store is not configured", nil)
	}
	key, err := checkedRateLimitKey(state.Key)
	if err != nil {
		return err
	}
	state.Key = key
	record := newRateLimitStateRecord(state)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(record).
			Column("quota_limit", "quota_remaining", "reset_at", "retry_after_ms",
				"throttled_until", "last_status", "attempts", "metadata", "updated_at").
			Where("host = ? AND bucket_key = ?", record.Host, record.BucketKey).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			return nil
		}
		record.ID = uuid.NewString()
		record.CreatedAt = record.UpdatedAt
		_, err = s.repo.CreateTx(ctx, tx, record)
		return err
	})
}

func newRateLimitStateRecord(state ratelimit.State) *rateLimitStateRecord {
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	record := &rateLimitStateRecord{
		Host:           state.Key.Host,
		BucketKey:      state.Key.BucketKey,
		Limit:          state.Limit,
		Remaining:      state.Remaining,
		ResetAt:        utcPtr(state.ResetAt),
		ThrottledUntil: utcPtr(state.ThrottledUntil),
		LastStatus:     state.LastStatus,
		Attempts:       state.Attempts,
		Metadata:       map[string]any{},
		UpdatedAt:      updated.UTC(),
	}
	for k, v := range state.Metadata {
		record.Metadata[k] = v
	}
	if state.RetryAfter != nil && *state.RetryAfter > 0 {
		ms := state.RetryAfter.Milliseconds()
		record.RetryAfterMS = &ms
	}
	return record
}

func (r *rateLimitStateRecord) state() ratelimit.State {
	out := ratelimit.State{
		Key:            core.RateLimitKey{Host: r.Host, BucketKey: r.BucketKey},
		Limit:          r.Limit,
		Remaining:      r.Remaining,
		ResetAt:        utcPtr(r.ResetAt),
		ThrottledUntil: utcPtr(r.ThrottledUntil),
		LastStatus:     r.LastStatus,
		Attempts:       r.Attempts,
		UpdatedAt:      r.UpdatedAt.UTC(),
		Metadata:       map[string]any{},
	}
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	if r.RetryAfterMS != nil && *r.RetryAfterMS > 0 {
		wait := time.Duration(*r.RetryAfterMS) * time.Millisecond
		out.RetryAfter = &wait
	}
	return out
}

func checkedRateLimitKey(key core.RateLimitKey) (core.RateLimitKey, error) {
	key = ratelimit.NormalizeKey(key)
	switch {
	case key.Host == "":
		return key, core.NewBadInputError("sqlstore: rate-limit host is required")
	case key.BucketKey == "":
		return key, core.NewBadInputError("sqlstore: rate-limit bucket key is required")
	}
	return key, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
