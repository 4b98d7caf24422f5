// Package memory provides an in-process TTL key-value store for tests and
// single instance deployments.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-integrations/core"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	nowFn   func() time.Time
}

type Option func(*Store)

// WithClock replaces the expiry clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewStore(opts ...Option) *Store {
	store := &Store{
		entries: map[string]entry{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("memory: ttl must be positive for key %q", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: s.nowFn().Add(ttl),
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), current.value...), true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Take(_ context.Context, key string) ([]byte, bool, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.live(key)
	delete(s.entries, key)
	if !ok {
		return nil, false, nil
	}
	return current.value, true, nil
}

// SweepExpired drops expired entries. Reads already ignore them.
func (s *Store) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	removed := 0
	for key, current := range s.entries {
		if !now.Before(current.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len counts live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := s.nowFn()
	for _, current := range s.entries {
		if now.Before(current.expiresAt) {
			count++
		}
	}
	return count
}

// live must be called with mu held.
func (s *Store) live(key string) (entry, bool) {
	current, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.nowFn().Before(current.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return current, true
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("memory: key is required")
	}
	return key, nil
}

// NewLocker returns the in-process key locker that pairs with Store.
func NewLocker() *core.MemoryKeyLocker {
	return core.NewMemoryKeyLocker()
}

var (
	_ core.KeyValueStore  = (*Store)(nil)
	_ core.KeyTaker       = (*Store)(nil)
	_ core.ExpiredSweeper = (*Store)(nil)
)
