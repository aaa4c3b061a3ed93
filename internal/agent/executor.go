package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// ErrNoAgent is returned when no agent is registered for a role.
var ErrNoAgent = errors.New("no agent registered for role")

// Policy controls how a role's failure affects its completion flag.
type Policy struct {
	// MarkCompleteOnFailure marks the role complete even when it fails.
	MarkCompleteOnFailure bool
}

// Outcome is the executor's view of one role execution.
type Outcome struct {
	Result   Result
	Error    *runstate.ErrorRecord
	Complete bool
	Duration time.Duration
}

// Failed reports whether the role failed without a usable result.
func (o Outcome) Failed() bool { return o.Result.Status == StatusFailed }

// Executor dispatches role executions to registered agents.
type Executor struct {
	mu       sync.RWMutex
	agents   map[runstate.Role]Agent
	policies map[runstate.Role]Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewExecutor creates an Executor with no agents.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		agents:   make(map[runstate.Role]Agent),
		policies: make(map[runstate.Role]Policy),
		logger:   logger,
		now:      time.Now,
	}
}

// Register maps the agent's role to the agent.
func (e *Executor) Register(a Agent, p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[a.Role()] = a
	e.policies[a.Role()] = p
}

// Agent returns the agent registered for role.
func (e *Executor) Agent(role runstate.Role) (Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[role]
	return a, ok
}

// Run executes the agent registered for role. It never returns an error
// for role failures: those are reported in the Outcome. Panics inside the
// agent are recovered and treated as failures.
func (e *Executor) Run(ctx context.Context, role runstate.Role, in Input) (Outcome, error) {
	e.mu.RLock()
	a, ok := e.agents[role]
	policy := e.policies[role]
	e.mu.RUnlock()
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoAgent, role)
	}
	if in.Shared == nil {
		return Outcome{}, fmt.Errorf("role %s: missing shared context", role)
	}

	start := e.now()
	res, err := safeExecute(ctx, a, in)
	if err == nil && res.Status == StatusFailed {
		err = errors.New("role reported failure")
	}

	if err != nil {
		e.logger.Warn("role failed", "session_id", in.Shared.SessionID, "role", role, "error", err)
		rec := &runstate.ErrorRecord{
			Role:      role,
			Kind:      runstate.ErrorKindRole,
			Message:   err.Error(),
			Timestamp: e.now(),
		}
		res = Result{Role: role, Status: StatusFailed, Timestamp: e.now()}

		if d, ok := a.(Degrader); ok {
			degraded, derr := safeDegrade(ctx, d, in, err)
			if derr == nil {
				res = degraded
				res.Degraded = true
				res.Status = StatusCompleted
			} else {
				rec.Details = map[string]any{"degrade_error": derr.Error()}
			}
		}
		return e.finish(in, res, rec, policy.MarkCompleteOnFailure, start), nil
	}

	return e.finish(in, res, nil, true, start), nil
}

func (e *Executor) finish(in Input, res Result, rec *runstate.ErrorRecord, complete bool, start time.Time) Outcome {
	citations, metrics := in.Shared.drain()
	res.Citations = append(res.Citations, citations...)
	if len(metrics) > 0 && res.Metrics == nil {
		res.Metrics = map[string]float64{}
	}
	for k, v := range metrics {
		res.Metrics[k] += v
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = e.now()
	}
	return Outcome{
		Result:   res,
		Error:    rec,
		Complete: complete,
		Duration: e.now().Sub(start),
	}
}

func safeExecute(ctx context.Context, a Agent, in Input) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", a.Role(), r)
		}
	}()
	return a.Execute(ctx, in)
}

func safeDegrade(ctx context.Context, d Degrader, in Input, cause error) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while degrading: %v", r)
		}
	}()
	return d.Degrade(ctx, in, cause)
}
