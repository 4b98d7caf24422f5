package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

// FlowService is the mutating half of the OAuth flow.
type FlowService interface {
	Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error)
	Callback(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error)
}

type AuthorizeCommand struct {
	service FlowService
}

func NewAuthorizeCommand(service FlowService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorize service is required")
	}
	out, err := c.service.Authorize(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CallbackCommand struct {
	service FlowService
}

func NewCallbackCommand(service FlowService) *CallbackCommand {
	return &CallbackCommand{service: service}
}

func (c *CallbackCommand) Execute(ctx context.Context, msg CallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.Callback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
