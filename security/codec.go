package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-integrations/core"
)

// SealedCodec encrypts the encoded credential envelope before it reaches the
// store. Unsealed values written before encryption was enabled still decode.
type SealedCodec struct {
	base    core.CredentialCodec
	secrets core.SecretProvider
}

func NewSealedCodec(secrets core.SecretProvider, base core.CredentialCodec) (*SealedCodec, error) {
	if secrets == nil {
		return nil, fmt.Errorf("security: secret provider is required")
	}
	if base == nil {
		base = core.JSONCredentialCodec{}
	}
	return &SealedCodec{base: base, secrets: secrets}, nil
}

func (c *SealedCodec) Encode(record core.CredentialRecord) ([]byte, error) {
	plain, err := c.base.Encode(record)
	if err != nil {
		return nil, err
	}
	return c.secrets.Encrypt(context.Background(), plain)
}

func (c *SealedCodec) Decode(raw []byte) (core.CredentialRecord, error) {
	if !IsSealed(raw) {
		return c.base.Decode(raw)
	}
	plain, err := c.secrets.Decrypt(context.Background(), raw)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	return c.base.Decode(plain)
}

var _ core.CredentialCodec = (*SealedCodec)(nil)
