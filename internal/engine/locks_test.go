package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLabelLocks_SerializesSameLabel(t *testing.T) {
	locks := NewLabelLocks()

	var active, maxActive int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(context.Background(), "shared")
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most one holder, saw %d", maxActive)
	}
	if locks.Len() != 0 {
		t.Errorf("expected lock table to be empty, got %d entries", locks.Len())
	}
}

func TestLabelLocks_DistinctLabelsDoNotBlock(t *testing.T) {
	locks := NewLabelLocks()
	unlockA, _ := locks.Lock(context.Background(), "a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock, err := locks.Lock(context.Background(), "b")
		if err == nil {
			unlock()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different label blocked")
	}
}

func TestLabelLocks_UnlockIsIdempotent(t *testing.T) {
	locks := NewLabelLocks()
	unlock, _ := locks.Lock(context.Background(), "x")
	unlock()
	unlock()

	if locks.Len() != 0 {
		t.Errorf("expected empty table, got %d", locks.Len())
	}
	// Lock again must not deadlock.
	again, err := locks.Lock(context.Background(), "x")
	if err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	again()
}

func TestLabelLocks_WaitHonoursContext(t *testing.T) {
	locks := NewLabelLocks()
	unlock, _ := locks.Lock(context.Background(), "busy")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Lock(ctx, "busy"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	if locks.Len() != 0 {
		t.Errorf("abandoned wait must not leak an entry, got %d", locks.Len())
	}

	// The label is free again after the holder releases it.
	next, err := locks.Lock(context.Background(), "busy")
	if err != nil {
		t.Fatalf("lock after release failed: %v", err)
	}
	next()
}
