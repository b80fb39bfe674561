package memory

import (
	"context"
	"fmt"
	"sync"
)

// Locker is an in-process keyed mutex. Entries are dropped once nobody holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	slot chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*keyLock),
	}
}

// Lock blocks until key is free or ctx is done. The returned func releases the lock and is safe to call twice.
func (that *Locker) Lock(ctx context.Context, key string) (func(), error) {
	that.mu.Lock()
	lock, ok := that.locks[key]
	if !ok {
		lock = &keyLock{slot: make(chan struct{}, 1)}
		that.locks[key] = lock
	}
	lock.refs++
	that.mu.Unlock()

	select {
	case lock.slot <- struct{}{}:
	case <-ctx.Done():
		that.release(key, lock)
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			<-lock.slot
			that.release(key, lock)
		})
	}, nil
}

func (that *Locker) release(key string, lock *keyLock) {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(that.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (that *Locker) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.locks)
}
