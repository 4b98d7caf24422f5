// Package redis backs the key-value store and key locker with go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-integrations/core"
)

// Store keeps every entry as a plain string key with a native expiry.
type Store struct {
	client goredis.Cmdable
	prefix string
}

type Option func(*options)

type options struct {
	prefix string
}

// WithKeyPrefix namespaces every key, e.g. "integrations:".
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = strings.TrimSpace(prefix)
	}
}

func NewStore(client goredis.Cmdable, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	resolved := resolveOptions(opts)
	return &Store{client: client, prefix: resolved.prefix}, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey, err := s.key(key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("redis: ttl must be positive for key %q", key)
	}
	if err := s.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	fullKey, err := s.key(key)
	if err != nil {
		return nil, false, err
	}
	value, err := s.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	fullKey, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("redis: del %q: %w", key, err)
	}
	return nil
}

// Take uses GETDEL, which needs Redis 6.2 or newer.
func (s *Store) Take(ctx context.Context, key string) ([]byte, bool, error) {
	fullKey, err := s.key(key)
	if err != nil {
		return nil, false, err
	}
	value, err := s.client.GetDel(ctx, fullKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: getdel %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) key(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("redis: key is required")
	}
	return s.prefix + key, nil
}

var releaseScript = goredis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker implements core.KeyLocker with SET NX PX and a token-checked release.
type Locker struct {
	client LockClient
	prefix string
}

// LockClient is the subset of go-redis a Locker needs.
type LockClient interface {
	goredis.Cmdable
	goredis.Scripter
}

func NewLocker(client LockClient, opts ...Option) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	resolved := resolveOptions(opts)
	return &Locker{client: client, prefix: resolved.prefix}, nil
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.LockHandle, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("redis: lock key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("redis: lock ttl must be positive")
	}
	lockKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w for key %q", core.ErrLockHeld, key)
	}
	return &lockHandle{client: l.client, key: lockKey, token: token}, nil
}

type lockHandle struct {
	client goredis.Scripter
	key    string
	token  string
}

// Unlock is a no-op when the lock already expired or changed hands.
func (h *lockHandle) Unlock(ctx context.Context) error {
	if err := releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: release lock %q: %w", h.key, err)
	}
	return nil
}

func resolveOptions(opts []Option) options {
	resolved := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

var (
	_ core.KeyValueStore = (*Store)(nil)
	_ core.KeyTaker      = (*Store)(nil)
	_ core.KeyLocker     = (*Locker)(nil)
)
