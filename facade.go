package integrations

import (
	"context"
	"fmt"

	gocmd "github.com/goliatone/go-command"

	intcommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	intquery "github.com/goliatone/go-integrations/query"
)

type Commands struct {
	Authorize *intcommand.AuthorizeCommand
	Callback  *intcommand.CallbackCommand
}

type Queries struct {
	GetCredentials *intquery.GetCredentialsQuery
	HasCredentials *intquery.HasCredentialsQuery
	ListItems      *intquery.ListItemsQuery
	AuthURLs       *intquery.AuthURLsQuery
}

// Facade exposes the broker operations as go-command handlers.
type Facade struct {
	service  core.IntegrationService
	commands Commands
	queries  Queries
}

func NewFacade(service core.IntegrationService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: integration service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			Authorize: intcommand.NewAuthorizeCommand(service),
			Callback:  intcommand.NewCallbackCommand(service),
		},
		queries: Queries{
			GetCredentials: intquery.NewGetCredentialsQuery(service),
			HasCredentials: intquery.NewHasCredentialsQuery(service),
			ListItems:      intquery.NewListItemsQuery(service),
			AuthURLs:       intquery.NewAuthURLsQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() core.IntegrationService {
	if f == nil {
		return nil
	}
	return f.service
}

// Providers lists the registered provider ids.
func (f *Facade) Providers() []string {
	if f == nil || f.service == nil {
		return nil
	}
	return f.service.Providers()
}

// Authorize runs the authorize command and returns its stored response.
func (f *Facade) Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error) {
	return executeWithResult[intcommand.AuthorizeMessage, core.AuthorizeResponse](
		ctx, f.Commands().Authorize, intcommand.AuthorizeMessage{Request: req},
	)
}

// Callback runs the callback command and returns its stored response.
func (f *Facade) Callback(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error) {
	return executeWithResult[intcommand.CallbackMessage, core.CallbackResponse](
		ctx, f.Commands().Callback, intcommand.CallbackMessage{Request: req},
	)
}

func (f *Facade) GetCredentials(ctx context.Context, req core.CredentialsRequest) (core.CredentialsResponse, error) {
	return f.Queries().GetCredentials.Query(ctx, intquery.GetCredentialsMessage{Request: req})
}

func (f *Facade) HasCredentials(ctx context.Context, req core.CredentialsRequest) (bool, error) {
	return f.Queries().HasCredentials.Query(ctx, intquery.HasCredentialsMessage{Request: req})
}

func (f *Facade) ListItems(ctx context.Context, req core.ListItemsRequest) ([]core.IntegrationItem, error) {
	return f.Queries().ListItems.Query(ctx, intquery.ListItemsMessage{Request: req})
}

func (f *Facade) AuthURLs(ctx context.Context, req core.AuthURLsRequest) (map[string]core.AuthorizeResponse, error) {
	return f.Queries().AuthURLs.Query(ctx, intquery.AuthURLsMessage{Request: req})
}

func executeWithResult[T any, R any](ctx context.Context, cmd gocmd.Commander[T], msg T) (R, error) {
	var zero R
	collector := gocmd.NewResult[R]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, ok := collector.Load()
	if !ok {
		return zero, fmt.Errorf("integrations: %T produced no result", msg)
	}
	return out, nil
}

var _ core.IntegrationService = (*Facade)(nil)
