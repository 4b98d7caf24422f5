package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	stateKeyPrefix        = "state:"
	credentialKeySuffix   = "_credentials:"
	stateNonceSeparator   = "."
	stateIdentitySep      = "-"
	stateNonceBytes       = 16
	credentialKeySegments = ":"
)

// CredentialKey addresses one stored credential record.
type CredentialKey struct {
	Provider       string
	UserID         string
	OrganizationID string
}

func NewCredentialKey(provider, userID, organizationID string) CredentialKey {
	return CredentialKey{
		Provider:       normalizeProviderID(provider),
		UserID:         strings.TrimSpace(userID),
		OrganizationID: strings.TrimSpace(organizationID),
	}
}

func (k CredentialKey) Validate() error {
	if k.Provider == "" {
		return fmt.Errorf("core: provider is required")
	}
	if k.UserID == "" {
		return fmt.Errorf("core: user_id is required")
	}
	if strings.Contains(k.UserID, credentialKeySegments) {
		return fmt.Errorf("core: user_id must not contain %q", credentialKeySegments)
	}
	return nil
}

// StoreKey renders {provider}_credentials:{user}[:{org}].
func (k CredentialKey) StoreKey() string {
	key := k.Provider + credentialKeySuffix + k.UserID
	if k.OrganizationID != "" {
		key += credentialKeySegments + k.OrganizationID
	}
	return key
}

func (k CredentialKey) String() string {
	return k.StoreKey()
}

// StateToken correlates an authorize call with its callback.
type StateToken struct {
	RawValue    string
	BoundUserID string
}

// NewStateToken renders {provider}-{user}[-{org}].{nonce}.
func NewStateToken(key CredentialKey, nonce string) StateToken {
	raw := key.Provider + stateIdentitySep + key.UserID
	if key.OrganizationID != "" {
		raw += stateIdentitySep + key.OrganizationID
	}
	if nonce = strings.TrimSpace(nonce); nonce != "" {
		raw += stateNonceSeparator + nonce
	}
	return StateToken{RawValue: raw, BoundUserID: key.UserID}
}

func (t StateToken) StoreKey() string {
	return StateStoreKey(t.RawValue)
}

func StateStoreKey(raw string) string {
	return stateKeyPrefix + strings.TrimSpace(raw)
}

// ParseStateToken recovers the credential key embedded in a state value. The
// bound user id comes from the store, so user ids containing the separator
// still parse.
func ParseStateToken(provider string, raw string, boundUserID string) (CredentialKey, error) {
	provider = normalizeProviderID(provider)
	raw = strings.TrimSpace(raw)
	boundUserID = strings.TrimSpace(boundUserID)
	if raw == "" || boundUserID == "" {
		return CredentialKey{}, fmt.Errorf("core: state is empty")
	}
	identity := raw
	if index := strings.LastIndex(identity, stateNonceSeparator); index >= 0 {
		identity = identity[:index]
	}
	prefix := provider + stateIdentitySep
	if !strings.HasPrefix(identity, prefix) {
		return CredentialKey{}, fmt.Errorf("core: state was not issued for provider %s", provider)
	}
	identity = strings.TrimPrefix(identity, prefix)
	switch {
	case identity == boundUserID:
		return NewCredentialKey(provider, boundUserID, ""), nil
	case strings.HasPrefix(identity, boundUserID+stateIdentitySep):
		org := strings.TrimPrefix(identity, boundUserID+stateIdentitySep)
		if org == "" {
			return CredentialKey{}, fmt.Errorf("core: state organization is empty")
		}
		return NewCredentialKey(provider, boundUserID, org), nil
	default:
		return CredentialKey{}, fmt.Errorf("core: state does not match bound user")
	}
}

func generateStateNonce() (string, error) {
	buf := make([]byte, stateNonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("core: generate state nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func normalizeProviderID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
