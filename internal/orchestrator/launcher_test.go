package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// gatedRunner blocks each run until release is closed or ctx ends.
type gatedRunner struct {
	release chan struct{}
	started chan string
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{release: make(chan struct{}), started: make(chan string, 4)}
}

func (g *gatedRunner) Run(ctx context.Context, sessionID string) (*runstate.RunState, error) {
	g.started <- sessionID
	select {
	case <-g.release:
		return &runstate.RunState{SessionID: sessionID, Status: runstate.StatusCompleted}, nil
	case <-ctx.Done():
		return &runstate.RunState{SessionID: sessionID, Status: runstate.StatusError}, ctx.Err()
	}
}

func TestLauncherRunsOncePerSession(t *testing.T) {
	r := newGatedRunner()
	l := NewLauncher(r, nil)

	var mu sync.Mutex
	var finished []runstate.Status
	l.OnFinish = func(_ string, s *runstate.RunState, err error) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, s.Status)
	}

	require.NoError(t, l.Start("sess-1"))
	assert.Equal(t, "sess-1", <-r.started)
	assert.ErrorIs(t, l.Start("sess-1"), ErrAlreadyRunning)
	assert.True(t, l.Running("sess-1"))
	assert.Equal(t, 1, l.Active())

	close(r.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "sess-1"))

	assert.False(t, l.Running("sess-1"))
	mu.Lock()
	assert.Equal(t, []runstate.Status{runstate.StatusCompleted}, finished)
	mu.Unlock()

	require.NoError(t, l.Start("sess-1"), "a finished session can be started again")
	require.NoError(t, l.Wait(ctx, "sess-1"))
}

func TestLauncherWaitUnknownSession(t *testing.T) {
	l := NewLauncher(newGatedRunner(), nil)
	assert.NoError(t, l.Wait(context.Background(), "missing"))
}

func TestLauncherWaitHonoursContext(t *testing.T) {
	r := newGatedRunner()
	l := NewLauncher(r, nil)
	require.NoError(t, l.Start("sess-1"))
	<-r.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx, "sess-1"), context.DeadlineExceeded)

	close(r.release)
	require.NoError(t, l.Shutdown(context.Background()))
}

func TestLauncherShutdownCancelsRuns(t *testing.T) {
	r := newGatedRunner()
	l := NewLauncher(r, nil)

	var mu sync.Mutex
	var errs []error
	l.OnFinish = func(_ string, _ *runstate.RunState, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	require.NoError(t, l.Start("sess-1"))
	require.NoError(t, l.Start("sess-2"))
	<-r.started
	<-r.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
	assert.Zero(t, l.Active())

	mu.Lock()
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
	mu.Unlock()

	assert.ErrorIs(t, l.Start("sess-3"), ErrLauncherClosed)
}
