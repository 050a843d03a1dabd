package security

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-fediauth/core"
)

// KeyringSecretProvider encrypts with the active key and decrypts with
// whichever registered key the envelope names, so stored application secrets
// and user tokens survive key rotation.
type KeyringSecretProvider struct {
	mu     sync.RWMutex
	active *AppKeySecretProvider
	keys   map[string]*AppKeySecretProvider
}

func NewKeyringSecretProvider(active *AppKeySecretProvider, previous ...*AppKeySecretProvider) (*KeyringSecretProvider, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active key is required")
	}
	ring := &KeyringSecretProvider{keys: map[string]*AppKeySecretProvider{}}
	for _, key := range previous {
		if key == nil {
			continue
		}
		ring.keys[key.ref()] = key
	}
	ring.Rotate(active)
	return ring, nil
}

// Rotate makes key the encryption key. Previously active keys stay
// available for decryption.
func (r *KeyringSecretProvider) Rotate(key *AppKeySecretProvider) {
	if r == nil || key == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key.ref()] = key
	r.active = key
}

func (r *KeyringSecretProvider) Active() (string, int) {
	if r == nil {
		return "", 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active.KeyID(), r.active.Version()
}

func (r *KeyringSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	return active.Encrypt(ctx, plaintext)
}

func (r *KeyringSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	ref := parsed.ref()
	r.mu.RLock()
	key, ok := r.keys[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("security: no key registered for %q", ref)
	}
	return key.open(parsed)
}

// NeedsRotation reports whether ciphertext was sealed by a key other than
// the active one.
func (r *KeyringSecretProvider) NeedsRotation(ciphertext []byte) (bool, error) {
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return false, err
	}
	keyID, version := r.Active()
	return meta.KeyID != keyID || meta.Version != version, nil
}

var _ core.SecretProvider = (*KeyringSecretProvider)(nil)
