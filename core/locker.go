package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultLockTTL            = 30 * time.Second
	defaultLockInitialBackoff = 10 * time.Millisecond
	defaultLockMaxBackoff     = 250 * time.Millisecond
)

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultLockInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultLockMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// acquireWithin retries Acquire until it succeeds, wait elapses, or ctx ends.
func acquireWithin(
	ctx context.Context,
	locker KeyLocker,
	key string,
	ttl time.Duration,
	wait time.Duration,
	backoff ExponentialBackoffScheduler,
) (LockHandle, error) {
	deadline := time.Now().Add(wait)
	for attempt := 1; ; attempt++ {
		handle, err := locker.Acquire(ctx, key, ttl)
		if err == nil {
			return handle, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, err
		}
		delay := backoff.NextDelay(attempt)
		if delay > remaining {
			delay = remaining
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return nil, waitErr
		}
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type memoryLock struct {
	until time.Time
	token uint64
}

// MemoryKeyLocker serializes holders of the same key inside one process.
type MemoryKeyLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	next  uint64
	nowFn func() time.Time
}

func NewMemoryKeyLocker() *MemoryKeyLocker {
	return &MemoryKeyLocker{
		locks: make(map[string]memoryLock),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryKeyLocker) Acquire(_ context.Context, key string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: key locker is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: key is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && now.Before(held.until) {
		return nil, fmt.Errorf("%w for key %q", ErrLockHeld, key)
	}
	l.next++
	l.locks[key] = memoryLock{until: now.Add(ttl), token: l.next}
	return &memoryLockHandle{locker: l, key: key, token: l.next}, nil
}

type memoryLockHandle struct {
	locker *MemoryKeyLocker
	key    string
	token  uint64
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		if held, ok := h.locker.locks[h.key]; ok && held.token == h.token {
			delete(h.locker.locks, h.key)
		}
		h.locker.mu.Unlock()
	})
	return nil
}
