// Package orchestrator runs the report workflow graph: it sequences role
// nodes, routes around roles the staffing decision left out, gates final
// synthesis on completion, and merges every node's result into the run
// through the session registry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/decision"
	"github.com/vikasvdk5/WestBay/internal/events"
	"github.com/vikasvdk5/WestBay/internal/logging"
	"github.com/vikasvdk5/WestBay/internal/metrics"
	"github.com/vikasvdk5/WestBay/internal/planner"
	"github.com/vikasvdk5/WestBay/internal/registry"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// DefaultConcurrencyLimit bounds parallel role execution.
const DefaultConcurrencyLimit = 3

// ErrBudgetExceeded is recorded when the cost policy halts a run.
var ErrBudgetExceeded = cost.ErrBudgetExceeded

// Config controls how the graph executes.
type Config struct {
	// Parallel runs independent optional roles concurrently.
	Parallel         bool
	ConcurrencyLimit int
	// CostPolicy decides whether a run continues past the cost estimate.
	// Nil means proceed.
	CostPolicy cost.Policy
}

// Deps are the collaborators of a Workflow. Registry and Executor are
// required; the rest default to stateless implementations or no-ops.
type Deps struct {
	Registry   *registry.Registry
	Executor   *agent.Executor
	Engine     *decision.Engine
	Planner    *planner.Planner
	Calculator *cost.Calculator
	Bus        *events.EventBus
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

// Workflow executes the report graph for one session at a time per call.
// It is safe to run different sessions concurrently.
type Workflow struct {
	registry *registry.Registry
	executor *agent.Executor
	engine   *decision.Engine
	planner  *planner.Planner
	calc     *cost.Calculator
	policy   cost.Policy
	bus      *events.EventBus
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// New creates a Workflow.
func New(d Deps, cfg Config) (*Workflow, error) {
	if d.Registry == nil {
		return nil, errors.New("workflow needs a session registry")
	}
	if d.Executor == nil {
		return nil, errors.New("workflow needs an agent executor")
	}
	logger := logging.OrDiscard(d.Logger)
	if d.Engine == nil {
		d.Engine = decision.NewEngine(logger)
	}
	if d.Planner == nil {
		d.Planner = planner.New(nil, logger)
	}
	if d.Calculator == nil {
		d.Calculator = cost.NewCalculator(cost.PriceTable{})
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("github.com/vikasvdk5/WestBay/internal/orchestrator")
	}
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	policy := cfg.CostPolicy
	if policy == nil {
		policy = cost.Proceed()
	}
	return &Workflow{
		registry: d.Registry,
		executor: d.Executor,
		engine:   d.Engine,
		planner:  d.Planner,
		calc:     d.Calculator,
		policy:   policy,
		bus:      d.Bus,
		metrics:  d.Metrics,
		tracer:   d.Tracer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// RegisterRoles registers agents on ex with the completion policy of their
// role: the fallback content role is marked complete even when it fails.
func RegisterRoles(ex *agent.Executor, agents ...agent.Agent) {
	for _, a := range agents {
		ex.Register(a, agent.Policy{
			MarkCompleteOnFailure: a.Role() == runstate.RoleFallbackContent,
		})
	}
}

// Run drives the session from its current position to a terminal status
// and returns the final snapshot. A research role failure skips the
// remaining research and final synthesis, still produces fallback content,
// and ends the run with status error. Role failures are not returned as
// errors; an error means the registry could
// not be read or written, or ctx was cancelled.
//
// Nodes whose result is already recorded on the run are not executed
// again, so calling Run on an interrupted session resumes it.
func (w *Workflow) Run(ctx context.Context, sessionID string) (*runstate.RunState, error) {
	state, err := w.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status.IsTerminal() {
		return state, nil
	}

	logger := logging.WithSession(w.logger, sessionID)
	ctx, span := w.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("report.topic", state.Requirements.Topic),
	))
	defer span.End()

	start := w.now()
	w.metrics.RunStarted()
	defer w.metrics.RunFinished()
	logger.Info("workflow started", "topic", state.Requirements.Topic, "parallel", w.cfg.Parallel)

	node := NodeCostEstimate
	for node != NodeEnd {
		if err := ctx.Err(); err != nil {
			state = w.abort(sessionID, err, logger)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}

		var next *runstate.RunState
		var err error
		if w.cfg.Parallel && isOptionalRoleNode(node) && node != NodeFallbackContent {
			next, err = w.runParallel(ctx, state)
			if err == nil {
				state = next
				node = nextRequired(state.RequiredRoles, NodeAnalyst)
				continue
			}
		} else {
			next, err = w.runNode(ctx, state, node)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if ctx.Err() != nil {
				state = w.abort(sessionID, ctx.Err(), logger)
				return state, ctx.Err()
			}
			return state, err
		}
		state = next
		node = route(node, state)
	}

	w.finish(state, w.now().Sub(start), logger)
	if state.Status == runstate.StatusError {
		span.SetStatus(codes.Error, "workflow ended with errors")
	}
	return state, nil
}

// runNode executes node unless its result is already on the run, applies
// the resulting update, and returns the fresh snapshot.
func (w *Workflow) runNode(ctx context.Context, state *runstate.RunState, node Node) (*runstate.RunState, error) {
	if w.done(state, node) {
		return state, nil
	}
	if node == NodeCompletionCheck {
		return w.apply(ctx, state.SessionID, node, w.completionCheck(state))
	}

	role := nodeRole(node)
	logger := logging.WithNode(logging.WithSession(w.logger, state.SessionID), string(node))
	ctx, span := w.tracer.Start(ctx, "workflow.node."+string(node), trace.WithAttributes(
		attribute.String("session.id", state.SessionID),
		attribute.String("workflow.node", string(node)),
		attribute.String("workflow.role", string(role)),
	))
	defer span.End()

	w.publish(events.TopicNode, events.NodeStartedEvent{
		SessionID: state.SessionID,
		Node:      string(node),
		Role:      role,
		Step:      nodeStep(node),
		Timestamp: w.now(),
	})
	if _, err := w.registry.Update(ctx, state.SessionID, runstate.Update{
		ID:           updateID(state.SessionID, node, stepStarted),
		CurrentAgent: role,
		At:           w.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to mark %s started: %w", node, err)
	}

	start := w.now()
	var (
		u        runstate.Update
		degraded bool
		err      error
	)
	switch node {
	case NodeCostEstimate:
		u, err = w.costEstimate(ctx, state)
	case NodeLeadStrategy:
		u, err = w.leadStrategy(ctx, state)
	default:
		u, degraded, err = w.executeRole(ctx, state, node, role)
	}
	if err != nil {
		return nil, err
	}
	u.CurrentAgent = role

	next, err := w.apply(ctx, state.SessionID, node, u)
	if err != nil {
		return nil, err
	}

	elapsed := w.now().Sub(start)
	outcome := "completed"
	if len(u.Errors) > 0 {
		outcome = "failed"
		if degraded {
			outcome = "degraded"
		}
		for _, rec := range u.Errors {
			w.metrics.IncRoleFailure(string(rec.Role), string(rec.Kind))
			span.RecordError(errors.New(rec.Message))
			w.publish(events.TopicNode, events.NodeFailedEvent{
				SessionID: state.SessionID,
				Node:      string(node),
				Role:      rec.Role,
				Kind:      rec.Kind,
				Err:       errors.New(rec.Message),
				Duration:  elapsed,
				Timestamp: w.now(),
			})
		}
		if !degraded {
			span.SetStatus(codes.Error, u.Errors[0].Message)
		}
	}
	w.metrics.ObserveNode(string(node), outcome, elapsed)
	w.publish(events.TopicNode, events.NodeCompletedEvent{
		SessionID: state.SessionID,
		Node:      string(node),
		Role:      role,
		Status:    next.Status,
		Degraded:  degraded,
		Duration:  elapsed,
		Timestamp: w.now(),
	})
	logger.Debug("node finished", "outcome", outcome, "status", next.Status, "duration", elapsed)
	return next, nil
}

// apply records u as node's finished update and publishes progress.
func (w *Workflow) apply(ctx context.Context, sessionID string, node Node, u runstate.Update) (*runstate.RunState, error) {
	u.ID = updateID(sessionID, node, stepFinished)
	if u.At.IsZero() {
		u.At = w.now()
	}
	next, err := w.registry.Update(ctx, sessionID, u)
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s update: %w", node, err)
	}
	w.publishProgress(next)
	return next, nil
}

func (w *Workflow) done(state *runstate.RunState, node Node) bool {
	return slices.Contains(state.AppliedUpdates, updateID(state.SessionID, node, stepFinished))
}

// abort records a cancelled run as an error. The write is not bound to the
// cancelled context.
func (w *Workflow) abort(sessionID string, cause error, logger *slog.Logger) *runstate.RunState {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Warn("workflow cancelled", "error", cause)
	state, err := w.registry.Update(ctx, sessionID, runstate.Update{
		ID:     sessionID + "/cancelled",
		Status: runstate.StatusError,
		Errors: []runstate.ErrorRecord{{
			Kind:      runstate.ErrorKindIO,
			Message:   "workflow cancelled: " + cause.Error(),
			Timestamp: w.now(),
		}},
		At: w.now(),
	})
	if err != nil {
		logger.Error("failed to record cancellation", "error", err)
		return nil
	}
	w.metrics.IncWorkflowRun(string(runstate.StatusError))
	w.publishFinished(state, 0)
	return state
}

func (w *Workflow) finish(state *runstate.RunState, elapsed time.Duration, logger *slog.Logger) {
	w.metrics.IncWorkflowRun(string(state.Status))
	w.publishFinished(state, elapsed)
	if state.Status == runstate.StatusError {
		logger.Warn("workflow ended with errors", "errors", len(state.Errors), "duration", elapsed)
		return
	}
	logger.Info("workflow completed", "citations", len(state.Citations), "duration", elapsed)
}

func (w *Workflow) publish(topic string, e events.Event) {
	if w.bus != nil {
		w.bus.Publish(topic, e)
	}
}

func (w *Workflow) publishProgress(s *runstate.RunState) {
	_, missing := runstate.AllComplete(s.RequiredRoles, s.Completion)
	w.publish(events.TopicWorkflow, events.WorkflowProgressEvent{
		SessionID: s.SessionID,
		Status:    s.Status,
		Required:  len(s.RequiredRoles),
		Completed: len(s.RequiredRoles) - len(missing),
		Progress:  s.Progress(),
		Timestamp: w.now(),
	})
}

func (w *Workflow) publishFinished(s *runstate.RunState, elapsed time.Duration) {
	w.publish(events.TopicWorkflow, events.WorkflowFinishedEvent{
		SessionID:  s.SessionID,
		Status:     s.Status,
		Errors:     len(s.Errors),
		ReportPath: ReportPath(s),
		Duration:   elapsed,
		Timestamp:  w.now(),
	})
}

// ReportPath returns the stored report artifact of a run, if any.
func ReportPath(s *runstate.RunState) string {
	out, ok := s.Output(runstate.RoleWriter)
	if !ok || len(out.Artifacts) == 0 {
		return ""
	}
	return out.Artifacts[0]
}

const (
	stepStarted  = "started"
	stepFinished = "finished"
)

// updateID is the deterministic id of a node's update.
func updateID(sessionID string, node Node, step string) string {
	return sessionID + "/" + string(node) + "/" + step
}

var nodeOrder = []Node{
	NodeCostEstimate, NodeLeadStrategy, NodeStructure,
	NodeCollector, NodeAPIResearcher, NodeAnalyst, NodeFallbackContent,
	NodeCompletionCheck, NodeFinalSynthesis,
}

// nodeStep is the 1-based position of node in the full graph.
func nodeStep(node Node) int {
	return slices.Index(nodeOrder, node) + 1
}
