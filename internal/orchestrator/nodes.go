package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/vikasvdk5/WestBay/internal/agent"
	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/decision"
	"github.com/vikasvdk5/WestBay/internal/logging"
	"github.com/vikasvdk5/WestBay/internal/planner"
	"github.com/vikasvdk5/WestBay/internal/roles"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Completed-task names recorded on the run.
const (
	TaskCostEstimation    = "cost_estimation"
	TaskResearchStrategy  = "research_strategy"
	TaskStructure         = "report_structure_synthesis"
	TaskWebCollection     = "web_data_collection"
	TaskAPICollection     = "api_data_collection"
	TaskAnalysis          = "data_analysis"
	TaskContentGeneration = "llm_content_generation"
	TaskReportWriting     = "report_writing"
)

const (
	payloadStatusSkipped   = "skipped"
	gateInconsistencyError = "required roles incomplete at completion check"
)

var roleTasks = map[runstate.Role]string{
	runstate.RoleStructure:       TaskStructure,
	runstate.RoleCollector:       TaskWebCollection,
	runstate.RoleAPIResearcher:   TaskAPICollection,
	runstate.RoleAnalyst:         TaskAnalysis,
	runstate.RoleFallbackContent: TaskContentGeneration,
	runstate.RoleWriter:          TaskReportWriting,
}

// Strategy is the output of the lead strategy node.
type Strategy struct {
	Decision    decision.StaffingDecision `json:"staffing_decision"`
	Plan        *planner.Plan             `json:"research_plan"`
	PlanCost    planner.CostEstimate      `json:"plan_cost"`
	Assignments planner.Assignments       `json:"task_assignments"`
}

// StrategyOf decodes the strategy recorded on a run.
func StrategyOf(s *runstate.RunState) (Strategy, bool) {
	var st Strategy
	out, ok := s.Output(runstate.RoleLeadResearcher)
	if !ok || out.Decode(&st) != nil {
		return Strategy{}, false
	}
	return st, true
}

// costEstimate prices the requirements and consults the cost policy. A
// refusal ends the run.
func (w *Workflow) costEstimate(ctx context.Context, state *runstate.RunState) (runstate.Update, error) {
	logger := logging.WithSession(w.logger, state.SessionID)
	est := w.calc.Estimate(state.Requirements)
	out, err := runstate.NewOutput(est, w.now())
	if err != nil {
		return runstate.Update{}, err
	}
	u := runstate.Update{
		Status:         runstate.StatusCostEstimated,
		CompletedTasks: []string{TaskCostEstimation},
		Outputs:        map[runstate.Role]runstate.Output{runstate.RoleCostEstimator: out},
	}
	if est.Budget.Status == cost.BudgetRed {
		logger.Warn("estimated cost is in the red band", "total_cost_usd", est.TotalCost)
	}

	if err := w.policy.Allow(ctx, state.SessionID, est); err != nil {
		logger.Warn("cost policy halted the run", "error", err)
		u.Status = runstate.StatusError
		u.Errors = []runstate.ErrorRecord{{
			Role:    runstate.RoleCostEstimator,
			Kind:    runstate.ErrorKindBudget,
			Message: err.Error(),
			Details: map[string]any{
				"budget_status":  string(est.Budget.Status),
				"total_cost_usd": est.TotalCost,
				"exceeded":       errors.Is(err, ErrBudgetExceeded),
			},
			Timestamp: w.now(),
		}}
	}
	return u, nil
}

// leadStrategy decides staffing, plans sub-tasks, and fixes the required
// roles for the rest of the run.
func (w *Workflow) leadStrategy(ctx context.Context, state *runstate.RunState) (runstate.Update, error) {
	req := state.Requirements
	request := state.UserRequest
	if request == "" {
		request = req.Topic
	}

	d := w.engine.Analyze(decision.InputFromRequirements(req, state.UserRequest))
	plan := planner.OptimizePlan(w.planner.CreatePlan(ctx, request))
	if plan.Fallback {
		logging.WithSession(w.logger, state.SessionID).Warn("using fallback research plan")
	}
	st := Strategy{
		Decision:    d,
		Plan:        plan,
		PlanCost:    planner.EstimateCost(plan, w.calc.Prices()),
		Assignments: planner.DistributeTasks(plan, d),
	}
	out, err := runstate.NewOutput(st, w.now())
	if err != nil {
		return runstate.Update{}, err
	}
	return runstate.Update{
		Status:         runstate.StatusStrategyCreated,
		CompletedTasks: []string{TaskResearchStrategy},
		RequiredRoles:  d.RequiredRoles(),
		Outputs:        map[runstate.Role]runstate.Output{runstate.RoleLeadResearcher: out},
	}, nil
}

// executeRole runs role through the executor and turns the outcome into an
// update. It reports whether the role degraded.
func (w *Workflow) executeRole(ctx context.Context, state *runstate.RunState, node Node, role runstate.Role) (runstate.Update, bool, error) {
	in := agent.Input{Tasks: tasksFor(state, role), Shared: agent.NewShared(state)}
	oc, err := w.executor.Run(ctx, role, in)
	if err != nil {
		return runstate.Update{}, false, fmt.Errorf("node %s: %w", node, err)
	}

	if role == runstate.RoleFallbackContent && oc.Failed() {
		oc, err = fallbackTemplate(in, oc)
		if err != nil {
			return runstate.Update{}, false, fmt.Errorf("node %s: %w", node, err)
		}
	}

	u := runstate.Update{Citations: oc.Result.Citations}
	if !oc.Failed() {
		u.CompletedTasks = []string{roleTasks[role]}
		u.Outputs = map[runstate.Role]runstate.Output{role: {
			Payload:    oc.Result.Payload,
			Artifacts:  oc.Result.Artifacts,
			Metrics:    oc.Result.Metrics,
			ProducedAt: oc.Result.Timestamp,
		}}
	}
	if oc.Error != nil {
		u.Errors = []runstate.ErrorRecord{*oc.Error}
	}
	optional := isOptionalRoleNode(node)
	if optional {
		u.Completion = map[runstate.Role]bool{role: oc.Complete}
	}
	u.Status = roleStatus(role, oc)
	if oc.Failed() && (role == runstate.RoleWriter || (optional && !oc.Complete)) {
		u.Status = runstate.StatusError
	}
	return u, oc.Result.Degraded, nil
}

// fallbackTemplate replaces a failed fallback content result that has no
// degraded payload with template content, so the report always has a
// body. The role's error record is kept.
func fallbackTemplate(in agent.Input, oc agent.Outcome) (agent.Outcome, error) {
	payload, err := json.Marshal(roles.TemplateContent(in.Shared))
	if err != nil {
		return oc, fmt.Errorf("failed to encode template content: %w", err)
	}
	oc.Result.Payload = payload
	oc.Result.Status = agent.StatusCompleted
	oc.Result.Degraded = true
	oc.Complete = true
	return oc, nil
}

// roleStatus is the status a role's node reports on success.
func roleStatus(role runstate.Role, oc agent.Outcome) runstate.Status {
	var p struct {
		Status   string `json:"status"`
		Degraded bool   `json:"degraded"`
	}
	if len(oc.Result.Payload) > 0 {
		_ = json.Unmarshal(oc.Result.Payload, &p)
	}
	switch role {
	case runstate.RoleStructure:
		return runstate.StatusStructureCreated
	case runstate.RoleCollector:
		return runstate.StatusWebResearchComplete
	case runstate.RoleAPIResearcher:
		if p.Status == payloadStatusSkipped {
			return runstate.StatusAPIResearchSkipped
		}
		return runstate.StatusAPIResearchComplete
	case runstate.RoleAnalyst:
		return runstate.StatusAnalysisComplete
	case runstate.RoleFallbackContent:
		if oc.Failed() || oc.Result.Degraded || p.Degraded {
			return runstate.StatusContentDegraded
		}
		return runstate.StatusContentComplete
	case runstate.RoleWriter:
		return runstate.StatusCompleted
	}
	return ""
}

// completionCheck gates final synthesis. A required role can be missing
// here only because it failed, which its own error record already
// explains; any other missing role is a routing bug.
func (w *Workflow) completionCheck(state *runstate.RunState) runstate.Update {
	ok, missing := runstate.AllComplete(state.RequiredRoles, state.Completion)
	if ok {
		return runstate.Update{}
	}
	logger := logging.WithSession(w.logger, state.SessionID)

	var unexplained []runstate.Role
	for _, role := range missing {
		if !failedRole(state, role) {
			unexplained = append(unexplained, role)
		}
	}
	if len(unexplained) == 0 {
		logger.Warn("required roles failed, skipping final synthesis", "missing", missing)
		return runstate.Update{Status: runstate.StatusError}
	}

	logger.Error("completion gate failed", "kind", runstate.ErrorKindGate, "missing", unexplained)
	w.metrics.IncRoleFailure("", string(runstate.ErrorKindGate))
	return runstate.Update{
		Status: runstate.StatusError,
		Errors: []runstate.ErrorRecord{{
			Kind:      runstate.ErrorKindGate,
			Message:   gateInconsistencyError,
			Details:   map[string]any{"missing": unexplained},
			Timestamp: w.now(),
		}},
	}
}

// failedRole reports whether role has a recorded failure on the run.
func failedRole(state *runstate.RunState, role runstate.Role) bool {
	return slices.ContainsFunc(state.Errors, func(e runstate.ErrorRecord) bool {
		return e.Role == role && e.Kind == runstate.ErrorKindRole
	})
}

// tasksFor returns the tasks the strategy assigned to role.
func tasksFor(state *runstate.RunState, role runstate.Role) []string {
	st, ok := StrategyOf(state)
	if !ok {
		return nil
	}
	return slices.Clone(st.Assignments[role])
}
