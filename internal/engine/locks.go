package engine

import (
	"context"
	"sync"
)

// LabelLocks serializes registration-then-use sequences per face label.
type LabelLocks struct {
	mu    sync.Mutex
	locks map[string]*labelLock
}

// labelLock is a one-slot semaphore; holding the slot holds the label.
type labelLock struct {
	slot chan struct{}
	refs int
}

// NewLabelLocks creates an empty lock table.
func NewLabelLocks() *LabelLocks {
	return &LabelLocks{locks: make(map[string]*labelLock)}
}

// Lock blocks until label is free or ctx is done. On success it returns the
// matching unlock function; on cancellation it returns ctx.Err() and holds
// nothing. Entries are dropped once nobody holds or waits on them.
func (l *LabelLocks) Lock(ctx context.Context, label string) (func(), error) {
	l.mu.Lock()
	ll, ok := l.locks[label]
	if !ok {
		ll = &labelLock{slot: make(chan struct{}, 1)}
		l.locks[label] = ll
	}
	ll.refs++
	l.mu.Unlock()

	select {
	case ll.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(label, ll)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ll.slot
			l.release(label, ll)
		})
	}, nil
}

func (l *LabelLocks) release(label string, ll *labelLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ll.refs--
	if ll.refs == 0 {
		delete(l.locks, label)
	}
}

// Len returns the number of labels currently held or awaited.
func (l *LabelLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
