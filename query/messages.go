package query

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeGetCredentials = "integrations.query.credentials.get"
	TypeHasCredentials = "integrations.query.credentials.has"
	TypeListItems      = "integrations.query.items.list"
	TypeAuthURLs       = "integrations.query.auth_urls"
)

type GetCredentialsMessage struct {
	Request core.CredentialsRequest
}

func (GetCredentialsMessage) Type() string { return TypeGetCredentials }

func (m GetCredentialsMessage) Validate() error {
	return validateCredentialsRequest(m.Request)
}

type HasCredentialsMessage struct {
	Request core.CredentialsRequest
}

func (HasCredentialsMessage) Type() string { return TypeHasCredentials }

func (m HasCredentialsMessage) Validate() error {
	return validateCredentialsRequest(m.Request)
}

type ListItemsMessage struct {
	Request core.ListItemsRequest
}

func (ListItemsMessage) Type() string { return TypeListItems }

func (m ListItemsMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return queryValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.BearerToken) == "" {
		return queryValidationError("authorization", "bearer token is required")
	}
	return nil
}

type AuthURLsMessage struct {
	Request core.AuthURLsRequest
}

func (AuthURLsMessage) Type() string { return TypeAuthURLs }

func (m AuthURLsMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

func validateCredentialsRequest(req core.CredentialsRequest) error {
	if strings.TrimSpace(req.Provider) == "" {
		return queryValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}
