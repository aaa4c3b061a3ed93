package registry

import "sync"

// sessionLocks provides per-session mutual exclusion. Updates to different
// sessions proceed concurrently while updates to the same session are
// serialized in arrival order.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for id, creating it on first use.
func (l *sessionLocks) Lock(id string) {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &refMutex{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	// Acquire outside the map lock so other sessions are not blocked.
	m.Lock()
}

// Unlock releases the mutex for id. The entry is dropped once no goroutine
// holds or waits on it.
func (l *sessionLocks) Unlock(id string) {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	m.refs--
	if m.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()

	m.Unlock()
}

// size reports how many sessions currently have a lock entry.
func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
