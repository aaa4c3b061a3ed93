// Package registry owns the lifecycle of Run State records. It is the only
// path through which a session's state is created, read, or mutated.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vikasvdk5/WestBay/internal/persistence"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// DefaultCacheSize is the number of Run State snapshots kept in memory.
const DefaultCacheSize = 128

var (
	// ErrNotFound is returned when a session has no Run State.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned by Create when the session id is taken.
	ErrExists = errors.New("session already exists")
)

// Registry creates, reads, and updates Run State records. Updates for one
// session are serialized; reads are served from an LRU cache of snapshots
// and fall through to the store on a miss.
type Registry struct {
	store  persistence.Store
	cache  *lru.Cache[string, *runstate.RunState]
	locks  *sessionLocks
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Registry over store. A non-positive cacheSize uses
// DefaultCacheSize.
func New(store persistence.Store, cacheSize int, logger *slog.Logger) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *runstate.RunState](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create state cache: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		store:  store,
		cache:  cache,
		locks:  newSessionLocks(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Create persists a fresh Run State in the initialized status.
func (r *Registry) Create(ctx context.Context, sessionID, userRequest string, req runstate.Requirements) (*runstate.RunState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	r.locks.Lock(sessionID)
	defer r.locks.Unlock(sessionID)

	if _, err := r.load(ctx, sessionID); err == nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrExists)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rs := runstate.New(sessionID, userRequest, req, r.now())
	if err := r.store.SaveRun(ctx, rs); err != nil {
		return nil, fmt.Errorf("failed to create session %q: %w", sessionID, err)
	}
	r.cache.Add(sessionID, rs.Clone())
	r.logger.Debug("session created", "session_id", sessionID, "topic", rs.Requirements.Topic)
	return rs, nil
}

// Get returns a snapshot of the session's Run State. Callers own the
// returned value.
func (r *Registry) Get(ctx context.Context, sessionID string) (*runstate.RunState, error) {
	rs, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rs.Clone(), nil
}

// Update applies u to the session through the field reducers and persists
// the result. A rejected update leaves the stored state unchanged. The
// returned snapshot reflects every update applied so far.
func (r *Registry) Update(ctx context.Context, sessionID string, u runstate.Update) (*runstate.RunState, error) {
	r.locks.Lock(sessionID)
	defer r.locks.Unlock(sessionID)

	current, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if u.At.IsZero() {
		u.At = r.now()
	}
	if err := next.Apply(u); err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	if err := r.store.SaveRun(ctx, next); err != nil {
		// Drop the cached copy so the next read reloads what the store has.
		r.cache.Remove(sessionID)
		return nil, fmt.Errorf("failed to persist session %q: %w", sessionID, err)
	}
	r.cache.Add(sessionID, next)
	return next.Clone(), nil
}

// Delete removes the session and its transcripts.
func (r *Registry) Delete(ctx context.Context, sessionID string) error {
	r.locks.Lock(sessionID)
	defer r.locks.Unlock(sessionID)

	r.cache.Remove(sessionID)
	if err := r.store.DeleteRun(ctx, sessionID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
		}
		return err
	}
	return nil
}

// List returns summaries of all sessions, most recently updated first.
func (r *Registry) List(ctx context.Context) ([]persistence.RunSummary, error) {
	return r.store.ListRuns(ctx)
}

// History returns the recorded prompt and reply transcript of a session.
func (r *Registry) History(ctx context.Context, sessionID string) ([]persistence.TranscriptEntry, error) {
	return r.store.GetHistory(ctx, sessionID)
}

// Cleanup deletes sessions not updated within olderThan and returns their
// ids. Sessions for which keep returns true, such as running ones, are
// not deleted.
func (r *Registry) Cleanup(ctx context.Context, olderThan time.Duration, keep func(sessionID string) bool) ([]string, error) {
	cutoff := r.now().Add(-olderThan)
	ids, err := r.store.DeleteRunsBefore(ctx, cutoff, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	for _, id := range ids {
		r.cache.Remove(id)
	}
	if len(ids) > 0 {
		r.logger.Info("cleaned up sessions", "count", len(ids), "cutoff", cutoff)
	}
	return ids, nil
}

// load returns the shared cached snapshot; callers must clone before
// handing it out or mutating it.
func (r *Registry) load(ctx context.Context, sessionID string) (*runstate.RunState, error) {
	if rs, ok := r.cache.Get(sessionID); ok {
		return rs, nil
	}
	rs, err := r.store.GetRun(ctx, sessionID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
		}
		return nil, err
	}
	r.cache.Add(sessionID, rs)
	return rs, nil
}
