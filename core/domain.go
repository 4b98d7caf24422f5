package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultCredentialTTL = time.Hour

type AuthState string

const (
	AuthStateNoCredential           AuthState = "no_credential"
	AuthStateAuthorizationRequested AuthState = "authorization_requested"
	AuthStateAuthorized             AuthState = "authorized"
)

// CredentialRecord is one provider token set. Payload holds the provider
// response verbatim; the typed fields are read from it.
type CredentialRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	ObtainedAt   time.Time
	Payload      map[string]any
}

func NewCredentialRecord(payload map[string]any, obtainedAt time.Time) (CredentialRecord, error) {
	accessToken := readPayloadString(payload, "access_token")
	if accessToken == "" {
		return CredentialRecord{}, fmt.Errorf("core: credential payload missing access_token")
	}
	record := CredentialRecord{
		AccessToken:  accessToken,
		RefreshToken: readPayloadString(payload, "refresh_token"),
		ExpiresIn:    readPayloadInt64(payload, "expires_in"),
		ObtainedAt:   obtainedAt.UTC(),
		Payload:      clonePayload(payload),
	}
	return record, nil
}

func (r CredentialRecord) HasRefreshToken() bool {
	return strings.TrimSpace(r.RefreshToken) != ""
}

// WithDefaultExpiry fills ExpiresIn when the provider omitted it.
func (r CredentialRecord) WithDefaultExpiry(ttl time.Duration) CredentialRecord {
	if r.ExpiresIn > 0 {
		return r
	}
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	r.ExpiresIn = int64(ttl / time.Second)
	return r
}

func (r CredentialRecord) TTL() time.Duration {
	if r.ExpiresIn <= 0 {
		return DefaultCredentialTTL
	}
	return time.Duration(r.ExpiresIn) * time.Second
}

func (r CredentialRecord) ExpiresAt() time.Time {
	return r.ObtainedAt.Add(r.TTL())
}

// Credentials returns a copy of the provider payload.
func (r CredentialRecord) Credentials() map[string]any {
	return clonePayload(r.Payload)
}

// WithFallbackRefreshToken keeps a previous refresh token when a refresh
// response did not rotate it.
func (r CredentialRecord) WithFallbackRefreshToken(previous string) CredentialRecord {
	previous = strings.TrimSpace(previous)
	if r.HasRefreshToken() || previous == "" {
		return r
	}
	r.RefreshToken = previous
	r.Payload = clonePayload(r.Payload)
	r.Payload["refresh_token"] = previous
	return r
}

// IntegrationItem is the provider agnostic item shape. Every field is always
// serialized.
type IntegrationItem struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Icon        string            `json:"icon"`
	Description string            `json:"description"`
	Type        string            `json:"type"`
	CreatedAt   string            `json:"created_at"`
	CreatedBy   string            `json:"created_by"`
	UpdatedAt   string            `json:"updated_at"`
	URL         string            `json:"url"`
	Metadata    map[string]string `json:"metadata"`
}

// RawItem is one object returned by a provider listing call.
type RawItem struct {
	Kind   string
	ID     string
	Fields map[string]any
}

type SubCallFailure struct {
	Name string
	Err  error
}

type ListResult struct {
	Items    []RawItem
	Failures []SubCallFailure
}

type AuthorizeInput struct {
	UserID         string
	OrganizationID string
	State          string
}

// AuthorizationRequest is the provider authorize endpoint plus the query it
// expects.
type AuthorizationRequest struct {
	EndpointURL  string
	ClientParams url.Values
	Scopes       []string
}

func (r AuthorizationRequest) URL() string {
	if len(r.ClientParams) == 0 {
		return r.EndpointURL
	}
	separator := "?"
	if strings.Contains(r.EndpointURL, "?") {
		separator = "&"
	}
	return r.EndpointURL + separator + r.ClientParams.Encode()
}

type ExchangeInput struct {
	Code  string
	State string
}

type AuthorizeRequest struct {
	Provider       string
	UserID         string
	OrganizationID string
}

type AuthorizeResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

type AuthURLsRequest struct {
	UserID         string
	OrganizationID string
}

type CallbackRequest struct {
	Provider string
	Code     string
	State    string
}

type CallbackResponse struct {
	Success     bool           `json:"success"`
	Credentials map[string]any `json:"credentials"`
}

type CredentialsRequest struct {
	Provider       string
	UserID         string
	OrganizationID string
}

type CredentialsResponse struct {
	Authenticated bool           `json:"authenticated"`
	Credentials   map[string]any `json:"credentials,omitempty"`
}

type ListItemsRequest struct {
	Provider    string
	BearerToken string
}

func readPayloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	switch value := payload[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readPayloadInt64(payload map[string]any, key string) int64 {
	if payload == nil {
		return 0
	}
	switch value := payload[key].(type) {
	case int:
		return int64(value)
	case int64:
		return value
	case float64:
		return int64(value)
	case interface{ Int64() (int64, error) }:
		parsed, err := value.Int64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func clonePayload(payload map[string]any) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = value
	}
	return out
}
