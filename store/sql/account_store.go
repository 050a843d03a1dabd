package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-fediauth/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStore persists raw user tokens. The signing credential is never
// stored; it is derived again when an account is loaded.
type AccountStore struct {
	db     *bun.DB
	repo   repository.Repository[*accountRecord]
	sealer sealer
}

func NewAccountStore(db *bun.DB, secrets core.SecretProvider) (*AccountStore, error) {
	if db == nil {
		return nil, configError("sqlstore: bun db is required", nil)
	}
	repo := repository.NewRepository[*accountRecord](db, accountHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, wrapInternal(err, "sqlstore: invalid account repository wiring", nil)
		}
	}
	return &AccountStore{db: db, repo: repo, sealer: sealer{provider: secrets}}, nil
}

func (s *AccountStore) Save(ctx context.Context, account core.StoredAccount) (core.StoredAccount, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.StoredAccount{}, configError("sqlstore: account store is not configured", nil)
	}
	account.ID = strings.TrimSpace(account.ID)
	account.ApplicationID = strings.TrimSpace(account.ApplicationID)
	if account.ApplicationID == "" {
		return core.StoredAccount{}, core.NewBadInputError("sqlstore: application id is required")
	}
	if strings.TrimSpace(account.AccessToken) == "" {
		return core.StoredAccount{}, core.NewBadInputError("sqlstore: access token is required")
	}
	ciphertext, format, err := s.sealer.seal(ctx, account.AccessToken)
	if err != nil {
		return core.StoredAccount{}, err
	}
	now := time.Now().UTC()
	record := &accountRecord{
		ID:               account.ID,
		ApplicationID:    account.ApplicationID,
		Host:             normalizeHost(account.Host),
		Label:            strings.TrimSpace(account.Label),
		EncryptedToken:   ciphertext,
		TokenFormat:      format,
		TokenFingerprint: core.Fingerprint(account.AccessToken),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
		created, createErr := s.repo.Create(ctx, record)
		if createErr != nil {
			return core.StoredAccount{}, createErr
		}
		record = created
	} else {
		existing, getErr := s.find(ctx, record.ID)
		if getErr != nil {
			return core.StoredAccount{}, getErr
		}
		record.CreatedAt = existing.CreatedAt
		if _, updateErr := s.db.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return core.StoredAccount{}, updateErr
		}
	}
	out := record.toDomain()
	out.AccessToken = account.AccessToken
	return out, nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (core.StoredAccount, error) {
	if s == nil || s.db == nil {
		return core.StoredAccount{}, configError("sqlstore: account store is not configured", nil)
	}
	record, err := s.find(ctx, id)
	if err != nil {
		return core.StoredAccount{}, err
	}
	return s.open(ctx, record)
}

func (s *AccountStore) ListByApplication(ctx context.Context, applicationID string) ([]core.StoredAccount, error) {
	if s == nil || s.repo == nil {
		return nil, configError("sqlstore: account store is not configured", nil)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("application_id", "=", strings.TrimSpace(applicationID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.StoredAccount, 0, len(records))
	for _, record := range records {
		account, openErr := s.open(ctx, record)
		if openErr != nil {
			return nil, openErr
		}
		out = append(out, account)
	}
	return out, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return configError("sqlstore: account store is not configured", nil)
	}
	id = strings.TrimSpace(id)
	res, err := s.db.NewDelete().
		Model((*accountRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := res.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.NewNotFoundError("sqlstore: account not found", map[string]any{"account_id": id})
	}
	return nil
}

func (s *AccountStore) find(ctx context.Context, id string) (*accountRecord, error) {
	id = strings.TrimSpace(id)
	record := &accountRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("sqlstore: account not found", map[string]any{"account_id": id})
		}
		return nil, err
	}
	return record, nil
}

func (s *AccountStore) open(ctx context.Context, record *accountRecord) (core.StoredAccount, error) {
	token, err := s.sealer.open(ctx, record.EncryptedToken, record.TokenFormat)
	if err != nil {
		return core.StoredAccount{}, err
	}
	out := record.toDomain()
	out.AccessToken = token
	return out, nil
}

func (r *accountRecord) toDomain() core.StoredAccount {
	if r == nil {
		return core.StoredAccount{}
	}
	return core.StoredAccount{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		Host:          r.Host,
		Label:         r.Label,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
