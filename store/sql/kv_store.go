package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store is a TTL key-value table. Rows past expires_at read as absent and are
// removed by SweepExpired.
type Store struct {
	db    *bun.DB
	repo  repository.Repository[*kvEntryRecord]
	nowFn func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewStore(db *bun.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*kvEntryRecord](db, kvEntryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid kv repository wiring: %w", err)
		}
	}
	store := &Store{
		db:    db,
		repo:  repo,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// EnsureSchema creates the kv table when migrations are not managed
// elsewhere.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: kv store is not configured")
	}
	if _, err := s.db.NewCreateTable().
		Model((*kvEntryRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create %s: %w", kvEntriesTable, err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*kvEntryRecord)(nil)).
		Index("idx_integrations_kv_entries_expires_at").
		IfNotExists().
		Column("expires_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create expiry index: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("sqlstore: ttl must be positive for key %q", key)
	}
	now := s.now()
	record := &kvEntryRecord{
		ID:        uuid.NewString(),
		EntryKey:  key,
		Value:     append([]byte{}, value...),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (entry_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: put %q: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, false, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("entry_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: get %q: %w", key, err)
	}
	if len(records) == 0 || records[0].expired(s.now()) {
		return nil, false, nil
	}
	return records[0].Value, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.db.NewDelete().
		Model((*kvEntryRecord)(nil)).
		Where("entry_key = ?", key).
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: delete %q: %w", key, err)
	}
	return nil
}

// Take reads and deletes key in one transaction. Only the caller whose delete
// removed the row observes the value.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &kvEntryRecord{}
		selectErr := tx.NewSelect().
			Model(record).
			Where("?TableAlias.entry_key = ?", key).
			Limit(1).
			Scan(ctx)
		if errors.Is(selectErr, sql.ErrNoRows) {
			return nil
		}
		if selectErr != nil {
			return selectErr
		}
		res, deleteErr := tx.NewDelete().
			Model((*kvEntryRecord)(nil)).
			Where("id = ?", record.ID).
			Exec(ctx)
		if deleteErr != nil {
			return deleteErr
		}
		affected, _ := res.RowsAffected()
		if affected == 0 || record.expired(s.now()) {
			return nil
		}
		value = record.Value
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: take %q: %w", key, err)
	}
	return value, found, nil
}

func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.NewDelete().
		Model((*kvEntryRecord)(nil)).
		Where("expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: sweep expired entries: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// CountLive reports the number of unexpired rows.
func (s *Store) CountLive(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	_, total, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.expires_at > ?", s.now())
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: count live entries: %w", err)
	}
	return total, nil
}

func (s *Store) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) ready() error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: kv store is not configured")
	}
	return nil
}

func (s *Store) now() time.Time {
	return s.nowFn().UTC()
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: key is required")
	}
	return key, nil
}
