package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vikasvdk5/WestBay/internal/logging"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

var (
	// ErrAlreadyRunning is returned when a session is started twice.
	ErrAlreadyRunning = errors.New("session is already running")
	// ErrLauncherClosed is returned by Start after Shutdown.
	ErrLauncherClosed = errors.New("launcher is shut down")
)

// Runner executes one session to completion. *Workflow satisfies it.
type Runner interface {
	Run(ctx context.Context, sessionID string) (*runstate.RunState, error)
}

// Launcher runs sessions in the background and tracks which are in
// flight. At most one run per session exists at a time.
type Launcher struct {
	runner Runner
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]chan struct{}
	closed  bool
	wg      sync.WaitGroup

	// OnFinish, if set, is called after each run with its final snapshot.
	OnFinish func(sessionID string, state *runstate.RunState, err error)
}

// NewLauncher creates a Launcher for r.
func NewLauncher(r Runner, logger *slog.Logger) *Launcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Launcher{
		runner:  r,
		logger:  logging.OrDiscard(logger),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]chan struct{}),
	}
}

// Start begins running sessionID in the background.
func (l *Launcher) Start(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLauncherClosed
	}
	if _, ok := l.running[sessionID]; ok {
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	l.running[sessionID] = done
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			delete(l.running, sessionID)
			l.mu.Unlock()
			close(done)
		}()

		state, err := l.runner.Run(l.ctx, sessionID)
		if err != nil {
			l.logger.Error("workflow run failed", "session_id", sessionID, "error", err)
		}
		if l.OnFinish != nil {
			l.OnFinish(sessionID, state, err)
		}
	}()
	return nil
}

// Running reports whether sessionID has a run in flight.
func (l *Launcher) Running(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[sessionID]
	return ok
}

// Active returns the number of runs in flight.
func (l *Launcher) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

// Wait blocks until the run of sessionID finishes or ctx is done. It
// returns immediately when the session is not running.
func (l *Launcher) Wait(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	done, ok := l.running[sessionID]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every run in flight and waits for them to record their
// final state, or for ctx to end.
func (l *Launcher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()

	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
