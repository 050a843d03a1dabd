package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-fediauth/core"
)

const (
	defaultKeyID      = "app-key"
	defaultKeyVersion = 1
)

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals stored application secrets and user tokens with
// AES-256-GCM. The key reference is bound as additional data, so an envelope
// relabelled with another kid or version fails to open.
type AppKeySecretProvider struct {
	gcm     cipher.AEAD
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(p *AppKeySecretProvider) {
		if id = strings.TrimSpace(id); id != "" {
			p.keyID = id
		}
	}
}

func WithVersion(version int) Option {
	return func(p *AppKeySecretProvider) {
		if version > 0 {
			p.version = version
		}
	}
}

// NewAppKeySecretProvider accepts raw AES keys of 16, 24 or 32 bytes as is.
// Any other material, such as a passphrase, is stretched with SHA-256.
func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	material := bytes.TrimSpace(keyMaterial)
	switch len(material) {
	case 0:
		return nil, fmt.Errorf("security: key material is required")
	case 16, 24, 32:
	default:
		sum := sha256.Sum256(material)
		material = sum[:]
	}
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	p := &AppKeySecretProvider{gcm: gcm, keyID: defaultKeyID, version: defaultKeyVersion}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.gcm == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, p.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: read nonce: %w", err)
	}
	sealed := p.gcm.Seal(nil, nonce, plaintext, []byte(p.ref()))
	return encodeEnvelope(envelope{
		KeyID:      p.keyID,
		Version:    p.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || p.gcm == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	return p.open(env)
}

func (p *AppKeySecretProvider) open(env envelope) ([]byte, error) {
	if ref := env.ref(); ref != p.ref() {
		return nil, fmt.Errorf("security: envelope sealed by %q, provider holds %q", ref, p.ref())
	}
	if env.Algorithm != envelopeAlgorithm {
		return nil, fmt.Errorf("security: unsupported envelope algorithm %q", env.Algorithm)
	}
	nonce, err := decodeBase64("nonce", env.Nonce)
	if err != nil {
		return nil, err
	}
	if len(nonce) != p.gcm.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce size %d", len(nonce))
	}
	sealed, err := decodeBase64("ciphertext", env.Ciphertext)
	if err != nil {
		return nil, err
	}
	plaintext, err := p.gcm.Open(nil, nonce, sealed, []byte(env.ref()))
	if err != nil {
		return nil, fmt.Errorf("security: open envelope: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *AppKeySecretProvider) ref() string {
	return keyRef(p.keyID, p.version)
}

func keyRef(keyID string, version int) string {
	return keyID + ":" + strconv.Itoa(version)
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
