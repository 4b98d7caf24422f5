// Package cache puts a go-repository-cache read-through layer in front of any
// core.KeyValueStore.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-integrations/core"
)

const keyPrefix = "go-integrations::kv::v1::"

var errEntryNotFound = errors.New("cache: entry not found")

type cachedEntry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Store caches successful reads. Writes go to the base store first and then
// invalidate the cached key. Misses are never cached. A fill that overlaps a
// local write is discarded. Writes made by other processes are only seen by
// GetFresh or once the cache TTL lapses.
type Store struct {
	base  core.KeyValueStore
	cache repositorycache.CacheService
	nowFn func() time.Time

	mu          sync.Mutex
	expiries    map[string]time.Time
	generations map[string]uint64
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewStore(base core.KeyValueStore, cacheService repositorycache.CacheService, opts ...Option) (*Store, error) {
	if base == nil {
		return nil, fmt.Errorf("cache: base store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("cache: cache service is required")
	}
	store := &Store{
		base:        base,
		cache:       cacheService,
		nowFn:       func() time.Time { return time.Now().UTC() },
		expiries:    map[string]time.Time{},
		generations: map[string]uint64{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// NewDefaultCacheService builds an in-process cache service with ttl.
func NewDefaultCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

// CacheKey returns the namespaced cache key for a store key.
func CacheKey(key string) string {
	return keyPrefix + url.PathEscape(strings.TrimSpace(key))
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.base.Put(ctx, key, value, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	s.expiries[strings.TrimSpace(key)] = s.nowFn().Add(ttl)
	s.generations[strings.TrimSpace(key)]++
	s.mu.Unlock()
	return s.invalidate(ctx, key)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cacheKey := CacheKey(key)
	startGen := s.generation(key)
	filled := false
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedEntry, error) {
		filled = true
		value, found, fetchErr := s.base.Get(ctx, key)
		if fetchErr != nil {
			return cachedEntry{}, fetchErr
		}
		if !found {
			return cachedEntry{}, errEntryNotFound
		}
		return cachedEntry{Value: append([]byte(nil), value...), ExpiresAt: s.knownExpiry(key)}, nil
	})
	if errors.Is(err, errEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if filled && s.generation(key) != startGen {
		// A local write landed while the base read was in flight.
		return s.GetFresh(ctx, key)
	}
	if !entry.ExpiresAt.IsZero() && !s.nowFn().Before(entry.ExpiresAt) {
		if invalidateErr := s.invalidate(ctx, key); invalidateErr != nil {
			return nil, false, invalidateErr
		}
		return nil, false, nil
	}
	return append([]byte(nil), entry.Value...), true, nil
}

// GetFresh reads the base store and drops the cached copy of key.
func (s *Store) GetFresh(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.invalidate(ctx, key); err != nil {
		return nil, false, err
	}
	return s.base.Get(ctx, key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	s.forget(key)
	return s.invalidate(ctx, key)
}

// Take delegates to the base store's Take when it has one; otherwise it is a
// Get followed by a Delete.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
		err   error
	)
	if taker, ok := s.base.(core.KeyTaker); ok {
		value, found, err = taker.Take(ctx, key)
	} else {
		value, found, err = s.base.Get(ctx, key)
		if err == nil && found {
			err = s.base.Delete(ctx, key)
		}
	}
	if err != nil {
		return nil, false, err
	}
	s.forget(key)
	if invalidateErr := s.invalidate(ctx, key); invalidateErr != nil {
		return nil, false, invalidateErr
	}
	return value, found, nil
}

// SweepExpired forwards to the base store when it keeps expired rows.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	now := s.nowFn()
	s.mu.Lock()
	for key, expiresAt := range s.expiries {
		if !now.Before(expiresAt) {
			delete(s.expiries, key)
		}
	}
	for key := range s.generations {
		if _, live := s.expiries[key]; !live {
			delete(s.generations, key)
		}
	}
	s.mu.Unlock()
	sweeper, ok := s.base.(core.ExpiredSweeper)
	if !ok {
		return 0, nil
	}
	return sweeper.SweepExpired(ctx)
}

func (s *Store) invalidate(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, CacheKey(key)); err != nil {
		return fmt.Errorf("cache: invalidate %q: %w", key, err)
	}
	return nil
}

func (s *Store) knownExpiry(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiries[strings.TrimSpace(key)]
}

func (s *Store) forget(key string) {
	s.mu.Lock()
	delete(s.expiries, strings.TrimSpace(key))
	s.generations[strings.TrimSpace(key)]++
	s.mu.Unlock()
}

func (s *Store) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[strings.TrimSpace(key)]
}

var (
	_ core.KeyValueStore  = (*Store)(nil)
	_ core.KeyTaker       = (*Store)(nil)
	_ core.FreshReader    = (*Store)(nil)
	_ core.ExpiredSweeper = (*Store)(nil)
)
