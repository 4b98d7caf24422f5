package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Querier[GetCredentialsMessage, core.CredentialsResponse]    = (*GetCredentialsQuery)(nil)
	_ gocmd.Querier[HasCredentialsMessage, bool]                        = (*HasCredentialsQuery)(nil)
	_ gocmd.Querier[ListItemsMessage, []core.IntegrationItem]           = (*ListItemsQuery)(nil)
	_ gocmd.Querier[AuthURLsMessage, map[string]core.AuthorizeResponse] = (*AuthURLsQuery)(nil)
)
