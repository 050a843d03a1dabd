package sqlstore

import (
	"context"

	"github.com/goliatone/go-fediauth/core"
)

// sealer encrypts application secrets and user tokens at rest. Without a
// provider values are stored as-is and tagged as plain so a later provider
// can still read them.
type sealer struct {
	provider core.SecretProvider
}

func (s sealer) seal(ctx context.Context, plaintext string) ([]byte, string, error) {
	if s.provider == nil {
		return []byte(plaintext), secretFormatPlain, nil
	}
	ciphertext, err := s.provider.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return nil, "", wrapInternal(err, "sqlstore: seal value", nil)
	}
	return ciphertext, secretFormatSealed, nil
}

func (s sealer) open(ctx context.Context, data []byte, format string) (string, error) {
	switch format {
	case secretFormatPlain, "":
		return string(data), nil
	case secretFormatSealed:
		if s.provider == nil {
			return "", configError("sqlstore: secret provider is required to open sealed values", map[string]any{"secret_format": format})
		}
		plaintext, err := s.provider.Decrypt(ctx, data)
		if err != nil {
			return "", wrapInternal(err, "sqlstore: open value", map[string]any{"secret_format": format})
		}
		return string(plaintext), nil
	default:
		return "", configError("sqlstore: unsupported secret format", map[string]any{"secret_format": format})
	}
}
