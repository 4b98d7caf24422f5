package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadRequest           = "INTEGRATIONS_BAD_REQUEST"
	ErrorUpstreamAuthInvalid  = "INTEGRATIONS_UPSTREAM_AUTH_INVALID"
	ErrorUpstreamUnavailable  = "INTEGRATIONS_UPSTREAM_UNAVAILABLE"
	ErrorUnauthorized         = "INTEGRATIONS_UNAUTHORIZED"
	ErrorPartialUpstream      = "INTEGRATIONS_PARTIAL_UPSTREAM"
	ErrorProviderNotFound     = "INTEGRATIONS_PROVIDER_NOT_FOUND"
	ErrorRefreshLocked        = "INTEGRATIONS_REFRESH_LOCKED"
	ErrorInternal             = "INTEGRATIONS_INTERNAL_ERROR"
	metadataKeyProvider       = "provider"
	metadataKeyUpstreamStatus = "upstream_status"
	metadataKeyUpstreamError  = "upstream_error"
)

var ErrLockHeld = errors.New("core: lock already held")

func NewBadRequestError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadRequest)
}

func NewUnauthorizedError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorUnauthorized)
}

func NewProviderNotFoundError(provider string) *goerrors.Error {
	return goerrors.New("Integration not found", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorProviderNotFound).
		WithMetadata(map[string]any{metadataKeyProvider: provider})
}

// UpstreamFailure describes a rejected or failed provider token call.
type UpstreamFailure struct {
	Provider   string
	Message    string
	Status     int
	OAuthError string
	Transient  bool
	Cause      error
}

// NewUpstreamAuthError builds an UpstreamAuthError. Transient failures map to
// CategoryExternal so callers can retry; invalid credentials map to CategoryAuth.
func NewUpstreamAuthError(failure UpstreamFailure) *goerrors.Error {
	message := strings.TrimSpace(failure.Message)
	if message == "" {
		message = "upstream rejected the credential exchange"
	}
	category := goerrors.CategoryAuth
	code := http.StatusUnauthorized
	textCode := ErrorUpstreamAuthInvalid
	if failure.Transient {
		category = goerrors.CategoryExternal
		code = http.StatusBadGateway
		textCode = ErrorUpstreamUnavailable
	}
	metadata := map[string]any{metadataKeyProvider: strings.TrimSpace(failure.Provider)}
	if failure.Status > 0 {
		metadata[metadataKeyUpstreamStatus] = failure.Status
	}
	if oauthErr := strings.TrimSpace(failure.OAuthError); oauthErr != "" {
		metadata[metadataKeyUpstreamError] = oauthErr
	}
	var err *goerrors.Error
	if failure.Cause != nil {
		err = goerrors.Wrap(failure.Cause, category, message)
	} else {
		err = goerrors.New(message, category)
	}
	return err.WithCode(code).WithTextCode(textCode).WithMetadata(metadata)
}

// IsInvalidCredential reports an upstream rejection that requires
// re-authorization.
func IsInvalidCredential(err error) bool {
	return hasTextCode(err, ErrorUpstreamAuthInvalid)
}

// IsTransientUpstream reports a retryable upstream failure, including timeouts.
func IsTransientUpstream(err error) bool {
	if hasTextCode(err, ErrorUpstreamUnavailable) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func IsUnauthorized(err error) bool {
	return hasTextCode(err, ErrorUnauthorized)
}

func IsProviderNotFound(err error) bool {
	return hasTextCode(err, ErrorProviderNotFound)
}

func IsBadRequest(err error) bool {
	return hasTextCode(err, ErrorBadRequest)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewUpstreamAuthError(UpstreamFailure{Message: "upstream request timed out", Transient: true, Cause: err})
	}
	if errors.Is(err, ErrLockHeld) {
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorRefreshLocked)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorProviderNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must not"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadRequest)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadRequest
	case goerrors.CategoryNotFound:
		return ErrorProviderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthorized
	case goerrors.CategoryConflict:
		return ErrorRefreshLocked
	case goerrors.CategoryExternal:
		return ErrorUpstreamUnavailable
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
