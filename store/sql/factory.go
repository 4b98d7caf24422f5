package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// NewStoreFromPersistence builds a Store on the bun DB owned by client.
func NewStoreFromPersistence(client *persistence.Client, opts ...Option) (*Store, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewStore(db, opts...)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *persistence.Client:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: persistence client is required")
		}
		return resolveBunDB(typed.DB())
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
