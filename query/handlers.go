package query

import (
	"context"

	"github.com/goliatone/go-integrations/core"
)

type CredentialsReader interface {
	GetCredentials(ctx context.Context, req core.CredentialsRequest) (core.CredentialsResponse, error)
	HasCredentials(ctx context.Context, req core.CredentialsRequest) (bool, error)
}

type ItemsReader interface {
	ListItems(ctx context.Context, req core.ListItemsRequest) ([]core.IntegrationItem, error)
}

type AuthURLsReader interface {
	AuthURLs(ctx context.Context, req core.AuthURLsRequest) (map[string]core.AuthorizeResponse, error)
}

type GetCredentialsQuery struct {
	reader CredentialsReader
}

func NewGetCredentialsQuery(reader CredentialsReader) *GetCredentialsQuery {
	return &GetCredentialsQuery{reader: reader}
}

func (q *GetCredentialsQuery) Query(ctx context.Context, msg GetCredentialsMessage) (core.CredentialsResponse, error) {
	if q == nil || q.reader == nil {
		return core.CredentialsResponse{}, queryDependencyError("query: credentials reader is required")
	}
	return q.reader.GetCredentials(ctx, msg.Request)
}

type HasCredentialsQuery struct {
	reader CredentialsReader
}

func NewHasCredentialsQuery(reader CredentialsReader) *HasCredentialsQuery {
	return &HasCredentialsQuery{reader: reader}
}

func (q *HasCredentialsQuery) Query(ctx context.Context, msg HasCredentialsMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: credentials reader is required")
	}
	return q.reader.HasCredentials(ctx, msg.Request)
}

type ListItemsQuery struct {
	reader ItemsReader
}

func NewListItemsQuery(reader ItemsReader) *ListItemsQuery {
	return &ListItemsQuery{reader: reader}
}

func (q *ListItemsQuery) Query(ctx context.Context, msg ListItemsMessage) ([]core.IntegrationItem, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: items reader is required")
	}
	return q.reader.ListItems(ctx, msg.Request)
}

type AuthURLsQuery struct {
	reader AuthURLsReader
}

func NewAuthURLsQuery(reader AuthURLsReader) *AuthURLsQuery {
	return &AuthURLsQuery{reader: reader}
}

func (q *AuthURLsQuery) Query(ctx context.Context, msg AuthURLsMessage) (map[string]core.AuthorizeResponse, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: auth urls reader is required")
	}
	return q.reader.AuthURLs(ctx, msg.Request)
}
