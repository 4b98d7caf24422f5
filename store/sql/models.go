package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

const kvEntriesTable = "integrations_kv_entries"

type kvEntryRecord struct {
	bun.BaseModel `bun:"table:integrations_kv_entries,alias:ikv"`

	ID        string    `bun:"id,pk"`
	EntryKey  string    `bun:"entry_key,notnull,unique"`
	Value     []byte    `bun:"value,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *kvEntryRecord) expired(now time.Time) bool {
	return r == nil || !now.Before(r.ExpiresAt)
}
