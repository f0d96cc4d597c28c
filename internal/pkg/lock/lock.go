// Package lock provides keyed in-process locks that serialize
// read-check-write sequences on the same user or (user, task) pair.
package lock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// entry is a one-slot semaphore shared by everyone using the same key.
// refs counts holders plus waiters so idle entries can be dropped.
type entry struct {
	sem  chan struct{}
	refs int
}

// KeyLock hands out one lock per key. Entries are created on demand and
// removed once nobody holds or waits for them.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// UserKey is the lock key guarding a user's balance.
func UserKey(userID string) string {
	return "user:" + userID
}

// TaskKey is the lock key guarding one user's completion of one task.
func TaskKey(userID, taskID string) string {
	return "task:" + userID + ":" + taskID
}

// AdViewKey is the lock key guarding the claim of a single ad view.
func AdViewKey(viewID string) string {
	return "adview:" + viewID
}

func (l *KeyLock) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyLock) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Lock blocks until the lock for key is held.
func (l *KeyLock) Lock(key string) {
	e := l.acquire(key)
	e.sem <- struct{}{}
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (l *KeyLock) Unlock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-e.sem:
		l.release(key, e)
	default:
	}
}

// TryLock acquires the lock without blocking and reports whether it did.
func (l *KeyLock) TryLock(key string) bool {
	e := l.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		l.release(key, e)
		return false
	}
}

// LockContext waits for the lock until ctx is done or timeout elapses.
// A non-positive timeout waits on ctx alone.
func (l *KeyLock) LockContext(ctx context.Context, key string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e := l.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, e)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock runs fn while holding the lock for key.
func (l *KeyLock) WithLock(key string, fn func() error) error {
	l.Lock(key)
	defer l.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding every lock in keys. Keys are
// taken in sorted order so overlapping callers cannot deadlock.
func (l *KeyLock) WithLockContext(ctx context.Context, timeout time.Duration, fn func() error, keys ...string) error {
	ordered := sortedUnique(keys)
	held := make([]string, 0, len(ordered))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.Unlock(held[i])
		}
	}()

	for _, key := range ordered {
		if err := l.LockContext(ctx, key, timeout); err != nil {
			return err
		}
		held = append(held, key)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// IsLocked reports whether key is currently held.
// This is a point-in-time check and may change immediately after.
func (l *KeyLock) IsLocked(key string) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	return ok && len(e.sem) == 1
}

// Len returns the number of live entries.
func (l *KeyLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func sortedUnique(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
