// Package security seals stored credentials with an application key.
package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	sealedPrefix   = "integrations.secret.v1:"
	sealAlgorithm  = "aes-256-gcm"
	defaultKeyID   = "app-key"
	defaultVersion = 1
)

var (
	// ErrNotSealed is returned when a value lacks the sealed prefix.
	ErrNotSealed = errors.New("security: value is not sealed")
	// ErrKeyMismatch is returned when a value was sealed under another key id
	// or version.
	ErrKeyMismatch = errors.New("security: sealing key mismatch")
)

// AppKeySealer is the core.SecretProvider behind stored credentials. A sealed
// value is the prefix followed by a JSON envelope. The key id, version and
// algorithm are the AEAD additional data, so an edited header does not open.
type AppKeySealer struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

type SealerOption func(*AppKeySealer)

// WithKeyID labels sealed values so a process holding another key refuses them
// before attempting to open.
func WithKeyID(id string) SealerOption {
	return func(s *AppKeySealer) {
		if id = strings.TrimSpace(id); id != "" {
			s.keyID = id
		}
	}
}

func WithKeyVersion(version int) SealerOption {
	return func(s *AppKeySealer) {
		if version > 0 {
			s.version = version
		}
	}
}

// NewAppKeySealer derives an AES-256 key from key. Surrounding whitespace is
// ignored; raw keys of 32 bytes are used as is and anything else is hashed.
func NewAppKeySealer(key string, opts ...SealerOption) (*AppKeySealer, error) {
	material := bytes.TrimSpace([]byte(key))
	if len(material) == 0 {
		return nil, fmt.Errorf("security: encryption key is required")
	}
	block, err := aes.NewCipher(deriveKey(material))
	if err != nil {
		return nil, fmt.Errorf("security: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: gcm: %w", err)
	}
	sealer := &AppKeySealer{aead: aead, keyID: defaultKeyID, version: defaultVersion}
	for _, opt := range opts {
		if opt != nil {
			opt(sealer)
		}
	}
	return sealer, nil
}

type sealedEnvelope struct {
	KeyID     string `json:"kid"`
	Version   int    `json:"ver"`
	Algorithm string `json:"alg"`
	Nonce     []byte `json:"nonce"`
	Data      []byte `json:"data"`
}

func (e sealedEnvelope) additionalData() []byte {
	return []byte(e.Algorithm + "|" + e.KeyID + "|" + strconv.Itoa(e.Version))
}

func (s *AppKeySealer) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: nothing to seal")
	}
	env := sealedEnvelope{
		KeyID:     s.keyID,
		Version:   s.version,
		Algorithm: sealAlgorithm,
		Nonce:     make([]byte, s.aead.NonceSize()),
	}
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, fmt.Errorf("security: nonce: %w", err)
	}
	env.Data = s.aead.Seal(nil, env.Nonce, plaintext, env.additionalData())
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(sealedPrefix), body...), nil
}

func (s *AppKeySealer) Decrypt(_ context.Context, sealed []byte) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	var env sealedEnvelope
	if err := json.Unmarshal(sealed[len(sealedPrefix):], &env); err != nil {
		return nil, fmt.Errorf("security: decode envelope: %w", err)
	}
	if env.Algorithm != sealAlgorithm {
		return nil, fmt.Errorf("security: unsupported algorithm %q", env.Algorithm)
	}
	if env.KeyID != s.keyID || env.Version != s.version {
		return nil, fmt.Errorf("%w: sealed with %s/v%d, have %s/v%d",
			ErrKeyMismatch, env.KeyID, env.Version, s.keyID, s.version)
	}
	if len(env.Nonce) != s.aead.NonceSize() {
		return nil, fmt.Errorf("security: nonce has length %d", len(env.Nonce))
	}
	plaintext, err := s.aead.Open(nil, env.Nonce, env.Data, env.additionalData())
	if err != nil {
		return nil, fmt.Errorf("security: open sealed value: %w", err)
	}
	return plaintext, nil
}

func (s *AppKeySealer) KeyID() string { return s.keyID }

func (s *AppKeySealer) Version() int { return s.version }

// IsSealed reports whether raw carries the sealed prefix. Plain JSON
// credentials never do.
func IsSealed(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte(sealedPrefix))
}

func deriveKey(material []byte) []byte {
	if len(material) == 32 {
		return append([]byte(nil), material...)
	}
	sum := sha256.Sum256(material)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySealer)(nil)
