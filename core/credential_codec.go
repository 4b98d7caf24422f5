package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const CredentialPayloadVersionV1 = 1

// JSONCredentialCodec stores a record as an envelope around the verbatim
// provider payload. Bare provider payloads written by older deployments
// decode with a zero ObtainedAt.
type JSONCredentialCodec struct{}

type jsonCredentialEnvelope struct {
	Version    int            `json:"version"`
	ObtainedAt time.Time      `json:"obtained_at"`
	Payload    map[string]any `json:"payload"`
}

func (JSONCredentialCodec) Encode(record CredentialRecord) ([]byte, error) {
	if len(record.Payload) == 0 {
		return nil, fmt.Errorf("core: credential payload is required")
	}
	encoded, err := json.Marshal(jsonCredentialEnvelope{
		Version:    CredentialPayloadVersionV1,
		ObtainedAt: record.ObtainedAt.UTC(),
		Payload:    record.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("core: encode credential: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(raw []byte) (CredentialRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return CredentialRecord{}, fmt.Errorf("core: credential payload is empty")
	}
	var document map[string]any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return CredentialRecord{}, fmt.Errorf("core: decode credential: %w", err)
	}

	payload, enveloped := document["payload"].(map[string]any)
	if !enveloped {
		return NewCredentialRecord(document, time.Time{})
	}
	var obtainedAt time.Time
	if value, ok := document["obtained_at"].(string); ok && value != "" {
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return CredentialRecord{}, fmt.Errorf("core: decode credential obtained_at: %w", err)
		}
		obtainedAt = parsed
	}
	return NewCredentialRecord(payload, obtainedAt)
}
