package registry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionLocksSerializeSameSession(t *testing.T) {
	locks := newSessionLocks()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock("sess-1")
			defer locks.Unlock("sess-1")

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
		t.Errorf("expected at most 1 holder at a time, got %d", maxActive)
	}
}

func TestSessionLocksIndependentSessions(t *testing.T) {
	locks := newSessionLocks()
	locks.Lock("sess-1")
	defer locks.Unlock("sess-1")

	done := make(chan struct{})
	go func() {
		locks.Lock("sess-2")
		locks.Unlock("sess-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different session blocked")
	}
}

func TestSessionLocksReleaseEntries(t *testing.T) {
	locks := newSessionLocks()
	locks.Lock("sess-1")
	locks.Lock("sess-2")
	if got := locks.size(); got != 2 {
		t.Fatalf("size mismatch: got %d, want 2", got)
	}
	locks.Unlock("sess-1")
	locks.Unlock("sess-2")
	if got := locks.size(); got != 0 {
		t.Errorf("expected entries to be released, got %d", got)
	}

	// Unlocking an unknown id is a no-op.
	locks.Unlock("missing")
}
