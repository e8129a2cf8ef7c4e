package syncer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// keyedLock is a mutex per key. Entries exist only while the key is held
// or waited for.
type keyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[string]*lockEntry)}
}

func (l *keyedLock) ref(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *keyedLock) unref(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Lock blocks until the key is free or ctx is done.
func (l *keyedLock) Lock(ctx context.Context, key string) error {
	e := l.ref(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, e)
		return err
	}
	return nil
}

// TryLock acquires the key without waiting.
func (l *keyedLock) TryLock(key string) bool {
	e := l.ref(key)
	if !e.sem.TryAcquire(1) {
		l.unref(key, e)
		return false
	}
	return true
}

// Unlock releases a key acquired with Lock or TryLock.
func (l *keyedLock) Unlock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()

	if !ok {
		panic("syncer: unlock of unlocked key " + key)
	}

	e.sem.Release(1)
	l.unref(key, e)
}

func (l *keyedLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
