package providers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// OAuth error codes that mean the grant or client is no longer usable.
var invalidCredentialErrors = map[string]struct{}{
	"invalid_grant":       {},
	"invalid_client":      {},
	"unauthorized_client": {},
	"invalid_request":     {},
	"invalid_scope":       {},
	"access_denied":       {},
}

// decodeTokenPayload keeps the provider response verbatim. Numbers stay as
// json.Number so the stored payload round-trips unchanged.
func decodeTokenPayload(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errTokenBodyEmpty
	}
	if trimmed[0] != '{' {
		values, err := url.ParseQuery(string(trimmed))
		if err != nil {
			return nil, err
		}
		payload := make(map[string]any, len(values))
		for key := range values {
			payload[key] = values.Get(key)
		}
		return payload, nil
	}
	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// classifyTokenResponse returns nil for a usable token response. Response
// bodies never leave this function; only the status and OAuth error code do.
func classifyTokenResponse(status int, payload map[string]any, decodeErr error) *core.UpstreamFailure {
	oauthError := ""
	if payload != nil {
		if value, ok := payload["error"].(string); ok {
			oauthError = strings.TrimSpace(value)
		}
	}

	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return &core.UpstreamFailure{Status: status, OAuthError: oauthError, Transient: true}
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return &core.UpstreamFailure{Status: status, OAuthError: oauthError}
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return &core.UpstreamFailure{Status: status, OAuthError: oauthError, Transient: true}
	}

	if oauthError != "" {
		_, invalid := invalidCredentialErrors[oauthError]
		return &core.UpstreamFailure{Status: status, OAuthError: oauthError, Transient: !invalid}
	}
	if decodeErr != nil {
		return &core.UpstreamFailure{Status: status, Transient: true, Cause: decodeErr}
	}
	return nil
}
