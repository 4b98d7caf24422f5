package transport

import (
	"fmt"
	"net/http"
	"net/url"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-integrations/core"
)

const metadataKeyStatusCode = "status_code"

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// statusError classifies a non-2xx upstream status. The response body is
// never included.
func statusError(method string, target *url.URL, status int) error {
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		category = goerrors.CategoryAuth
		code = http.StatusUnauthorized
	case http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
		code = http.StatusBadGateway
	}
	return transportError(
		fmt.Sprintf("transport: upstream returned status %d", status),
		category,
		code,
		map[string]any{
			"method":              method,
			"url":                 redactURL(target),
			metadataKeyStatusCode: status,
		},
	)
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return 0
	}
	status, _ := richErr.Metadata[metadataKeyStatusCode].(int)
	return status
}

// IsAuthRejection reports a 401 or 403 from the upstream API.
func IsAuthRejection(err error) bool {
	status := StatusCode(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadRequest
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.ErrorUnauthorized
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return core.ErrorUpstreamUnavailable
	default:
		return core.ErrorInternal
	}
}
