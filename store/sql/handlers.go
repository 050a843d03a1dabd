package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// uuidRecord is implemented by every table model. Primary keys are UUID
// strings generated on insert.
type uuidRecord interface {
	idField() *string
}

func (r *applicationRecord) idField() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *accountRecord) idField() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *rateLimitStateRecord) idField() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func uuidHandlers[T uuidRecord](newRecord func() T, identifier string, identifierValue func(T) string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			id := record.idField()
			if id == nil {
				return uuid.Nil
			}
			parsed, err := uuid.Parse(strings.TrimSpace(*id))
			if err != nil {
				return uuid.Nil
			}
			return parsed
		},
		SetID: func(record T, id uuid.UUID) {
			if field := record.idField(); field != nil {
				*field = id.String()
			}
		},
		GetIdentifier: func() string { return identifier },
		GetIdentifierValue: func(record T) string {
			if identifierValue == nil {
				return ""
			}
			return strings.TrimSpace(identifierValue(record))
		},
	}
}

func recordID[T uuidRecord](record T) string {
	if id := record.idField(); id != nil {
		return *id
	}
	return ""
}

// Applications are looked up by host, one row per host.
func applicationHandlers() repository.ModelHandlers[*applicationRecord] {
	return uuidHandlers(
		func() *applicationRecord { return &applicationRecord{} },
		"host",
		func(r *applicationRecord) string {
			if r == nil {
				return ""
			}
			return r.Host
		},
	)
}

func accountHandlers() repository.ModelHandlers[*accountRecord] {
	return uuidHandlers(func() *accountRecord { return &accountRecord{} }, "id", recordID[*accountRecord])
}

func rateLimitStateHandlers() repository.ModelHandlers[*rateLimitStateRecord] {
	return uuidHandlers(func() *rateLimitStateRecord { return &rateLimitStateRecord{} }, "id", recordID[*rateLimitStateRecord])
}
