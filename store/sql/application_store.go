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

// ApplicationStore persists registered applications, one per host.
type ApplicationStore struct {
	db     *bun.DB
	repo   repository.Repository[*applicationRecord]
	sealer sealer
}

func NewApplicationStore(db *bun.DB, secrets core.SecretProvider) (*ApplicationStore, error) {
	if db == nil {
		return nil, configError("sqlstore: bun db is required", nil)
	}
	repo := repository.NewRepository[*applicationRecord](db, applicationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, wrapInternal(err, "sqlstore: invalid application repository wiring", nil)
		}
	}
	return &ApplicationStore{db: db, repo: repo, sealer: sealer{provider: secrets}}, nil
}

// Save inserts app or, when a record for the same id or host exists,
// replaces its registration data and secret.
func (s *ApplicationStore) Save(ctx context.Context, app core.StoredApplication) (core.StoredApplication, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.StoredApplication{}, configError("sqlstore: application store is not configured", nil)
	}
	app.ID = strings.TrimSpace(app.ID)
	app.Host = normalizeHost(app.Host)
	if app.Host == "" {
		return core.StoredApplication{}, core.NewBadInputError("sqlstore: application host is required")
	}
	if strings.TrimSpace(app.Secret) == "" {
		return core.StoredApplication{}, core.NewBadInputError("sqlstore: application secret is required")
	}
	ciphertext, format, err := s.sealer.seal(ctx, app.Secret)
	if err != nil {
		return core.StoredApplication{}, err
	}
	now := time.Now().UTC()

	var saved *applicationRecord
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, findErr := findApplicationTx(ctx, tx, app.ID, app.Host)
		if findErr != nil {
			return findErr
		}
		record := &applicationRecord{
			Host:              app.Host,
			Name:              app.Name,
			Description:       app.Description,
			Permissions:       copyStrings(app.Permissions),
			CallbackURL:       strings.TrimSpace(app.CallbackURL),
			EncryptedSecret:   ciphertext,
			SecretFormat:      format,
			SecretFingerprint: core.Fingerprint(app.Secret),
			UpdatedAt:         now,
		}
		if existing == nil {
			if app.ID != "" {
				return core.NewNotFoundError("sqlstore: application not found", map[string]any{"application_id": app.ID})
			}
			record.ID = uuid.NewString()
			record.CreatedAt = now
			created, createErr := s.repo.CreateTx(ctx, tx, record)
			if createErr != nil {
				return createErr
			}
			saved = created
			return nil
		}
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		saved = record
		return nil
	})
	if err != nil {
		return core.StoredApplication{}, err
	}
	out := saved.toDomain()
	out.Secret = app.Secret
	return out, nil
}

func (s *ApplicationStore) Get(ctx context.Context, id string) (core.StoredApplication, error) {
	if s == nil || s.db == nil {
		return core.StoredApplication{}, configError("sqlstore: application store is not configured", nil)
	}
	id = strings.TrimSpace(id)
	record := &applicationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.StoredApplication{}, core.NewNotFoundError("sqlstore: application not found", map[string]any{"application_id": id})
		}
		return core.StoredApplication{}, err
	}
	return s.open(ctx, record)
}

func (s *ApplicationStore) GetByHost(ctx context.Context, host string) (core.StoredApplication, error) {
	if s == nil || s.db == nil {
		return core.StoredApplication{}, configError("sqlstore: application store is not configured", nil)
	}
	host = normalizeHost(host)
	record := &applicationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.host = ?", host).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.StoredApplication{}, core.NewNotFoundError("sqlstore: application not found", map[string]any{"host": host})
		}
		return core.StoredApplication{}, err
	}
	return s.open(ctx, record)
}

func (s *ApplicationStore) open(ctx context.Context, record *applicationRecord) (core.StoredApplication, error) {
	secret, err := s.sealer.open(ctx, record.EncryptedSecret, record.SecretFormat)
	if err != nil {
		return core.StoredApplication{}, err
	}
	out := record.toDomain()
	out.Secret = secret
	return out, nil
}

func findApplicationTx(ctx context.Context, tx bun.Tx, id string, host string) (*applicationRecord, error) {
	record := &applicationRecord{}
	query := tx.NewSelect().Model(record)
	if id != "" {
		query = query.Where("?TableAlias.id = ?", id)
	} else {
		query = query.Where("?TableAlias.host = ?", host)
	}
	if err := query.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *applicationRecord) toDomain() core.StoredApplication {
	if r == nil {
		return core.StoredApplication{}
	}
	return core.StoredApplication{
		ID:          r.ID,
		Host:        r.Host,
		Name:        r.Name,
		Description: r.Description,
		Permissions: copyStrings(r.Permissions),
		CallbackURL: r.CallbackURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

func copyStrings(in []string) []string {
	out := make([]string, 0, len(in))
	return append(out, in...)
}
