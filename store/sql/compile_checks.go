package sqlstore

import "github.com/goliatone/go-integrations/core"

var (
	_ core.KeyValueStore  = (*Store)(nil)
	_ core.KeyTaker       = (*Store)(nil)
	_ core.ExpiredSweeper = (*Store)(nil)
)
