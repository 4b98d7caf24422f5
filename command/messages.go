package command

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeAuthorize = "integrations.command.authorize"
	TypeCallback  = "integrations.command.callback"
)

type AuthorizeMessage struct {
	Request core.AuthorizeRequest
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type CallbackMessage struct {
	Request core.CallbackRequest
}

func (CallbackMessage) Type() string { return TypeCallback }

func (m CallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "state is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "code is required")
	}
	return nil
}
