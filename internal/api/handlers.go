package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vikasvdk5/WestBay/internal/orchestrator"
	"github.com/vikasvdk5/WestBay/internal/registry"
	"github.com/vikasvdk5/WestBay/internal/roles"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// fixedTasks counts the tasks every run performs regardless of staffing:
// cost estimation, strategy, structure and report writing.
const fixedTasks = 4

func newSessionID() string { return uuid.NewString() }

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

// load fetches the session named by the :id parameter, answering 404 when
// it does not exist.
func (s *Server) load(c *gin.Context) (*runstate.RunState, bool) {
	state, err := s.registry.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, registry.ErrNotFound):
		s.fail(c, http.StatusNotFound, fmt.Errorf("session %q not found", c.Param("id")))
		return nil, false
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return nil, false
	}
	return state, true
}

func (s *Server) submitRequirements(c *gin.Context) {
	var body SubmitRequirementsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	req := body.Requirements.Requirements()
	id := s.newID()
	if _, err := s.registry.Create(c.Request.Context(), id, body.UserRequest, req); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("requirements submitted", "session_id", id, "topic", req.Topic)

	c.JSON(http.StatusCreated, SubmitRequirementsResponse{
		SessionID:               id,
		Status:                  "requirements_received",
		Message:                 "Requirements successfully submitted",
		SummarizedRequirement:   summarize(req),
		EstimatedCompletionTime: completionTime(req.Complexity),
	})
}

func summarize(req runstate.Requirements) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market research report on '%s' with %d pages, %d sources, %s complexity.",
		req.Topic, req.PageCount, req.SourceCount, req.Complexity)
	if req.IncludeAnalysis {
		b.WriteString(" Includes detailed analysis.")
	}
	if req.IncludeVisualizations {
		b.WriteString(" Includes data visualizations.")
	}
	return b.String()
}

func completionTime(c runstate.Complexity) string {
	if c == runstate.ComplexityComplex {
		return "30-45 minutes"
	}
	return "15-30 minutes"
}

func (s *Server) costEstimate(c *gin.Context) {
	state, ok := s.load(c)
	if !ok {
		return
	}
	e := s.calc.Estimate(state.Requirements)
	c.JSON(http.StatusOK, CostEstimateResponse{
		SessionID:       state.SessionID,
		TotalTokens:     e.Tokens.Total,
		InputTokens:     e.Tokens.Input,
		OutputTokens:    e.Tokens.Output,
		TotalCostUSD:    e.TotalCost,
		MinCostUSD:      e.MinCost,
		MaxCostUSD:      e.MaxCost,
		BudgetStatus:    e.Budget.Status,
		BudgetMessage:   e.Budget.Message,
		AgentBreakdown:  e.Breakdown,
		Recommendations: e.Recommendations,
	})
}

// previewStructure returns the synthesized outline once the structure role
// has run, and the rule-based outline before that.
func (s *Server) previewStructure(c *gin.Context) {
	state, ok := s.load(c)
	if !ok {
		return
	}
	var st roles.Structure
	out, found := state.Output(runstate.RoleStructure)
	if !found || out.Decode(&st) != nil {
		st = roles.RuleBasedStructure(state.Requirements, state.UserRequest)
	}
	c.JSON(http.StatusOK, StructureResponse{
		SessionID:          state.SessionID,
		ReportType:         st.ReportType,
		Sections:           st.Sections,
		EstimatedPages:     state.Requirements.PageCount,
		Generated:          st.Generated,
		ReadyForGeneration: !state.Status.IsTerminal() && !s.launcher.Running(state.SessionID),
	})
}

func (s *Server) generateReport(c *gin.Context) {
	var body GenerateReportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	state, err := s.registry.Get(c.Request.Context(), body.SessionID)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		s.fail(c, http.StatusNotFound, fmt.Errorf("session %q not found", body.SessionID))
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if state.Status.IsTerminal() {
		s.fail(c, http.StatusConflict, fmt.Errorf("session %q already finished with status %s", body.SessionID, state.Status))
		return
	}

	if err := s.launcher.Start(body.SessionID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, orchestrator.ErrAlreadyRunning):
			status = http.StatusConflict
		case errors.Is(err, orchestrator.ErrLauncherClosed):
			status = http.StatusServiceUnavailable
		}
		s.fail(c, status, err)
		return
	}
	s.logger.Info("report generation started", "session_id", body.SessionID)

	c.JSON(http.StatusAccepted, GenerateReportResponse{
		SessionID: body.SessionID,
		Status:    "generating",
		Message:   "Report generation started",
		Progress:  progressPercent(state),
	})
}

func (s *Server) reportStatus(c *gin.Context) {
	state, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ReportStatusResponse{
		SessionID:      state.SessionID,
		Status:         state.Status,
		Running:        s.launcher.Running(state.SessionID),
		CurrentAgent:   state.CurrentAgent,
		CompletedTasks: state.CompletedTasks,
		TotalTasks:     totalTasks(state),
		Progress:       progressPercent(state),
		ReportPath:     orchestrator.ReportPath(state),
		Errors:         state.Errors,
	})
}

// totalTasks is the number of tasks the run will record once staffed.
func totalTasks(s *runstate.RunState) int {
	if s.RequiredRoles == nil {
		return fixedTasks + len(runstate.OptionalRoles)
	}
	return fixedTasks + len(s.RequiredRoles)
}

func progressPercent(s *runstate.RunState) int {
	if s.Status == runstate.StatusCompleted {
		return 100
	}
	p := len(s.CompletedTasks) * 100 / totalTasks(s)
	return min(p, 99)
}

func (s *Server) report(c *gin.Context) {
	state, ok := s.load(c)
	if !ok {
		return
	}
	if state.Status != runstate.StatusCompleted {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("report not yet completed: status %s", state.Status))
		return
	}
	out, found := state.Output(runstate.RoleWriter)
	var report roles.Report
	if !found || out.Decode(&report) != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("session %q has no readable report", state.SessionID))
		return
	}
	var charts []string
	if a, ok := state.Output(runstate.RoleAnalyst); ok {
		charts = a.Artifacts
	}
	c.JSON(http.StatusOK, ReportResponse{
		SessionID:      state.SessionID,
		Status:         state.Status,
		Markdown:       report.Markdown,
		ReportPath:     report.Path,
		Minimal:        report.Minimal,
		WordCount:      report.WordCount,
		Citations:      state.Citations,
		Visualizations: charts,
		GeneratedAt:    out.ProducedAt,
	})
}

// debugState returns the raw run state.
func (s *Server) debugState(c *gin.Context) {
	state, ok := s.load(c)
	if !ok {
		return
	}
	_, missing := runstate.AllComplete(state.RequiredRoles, state.Completion)
	c.JSON(http.StatusOK, gin.H{
		"state":         state,
		"running":       s.launcher.Running(state.SessionID),
		"missing_roles": missing,
	})
}

func (s *Server) listSessions(c *gin.Context) {
	runs, err := s.registry.List(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, SessionsResponse{TotalSessions: len(runs), Sessions: runs})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if s.launcher.Running(id) {
		s.fail(c, http.StatusConflict, fmt.Errorf("session %q is running", id))
		return
	}
	err := s.registry.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		s.fail(c, http.StatusNotFound, fmt.Errorf("session %q not found", id))
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	if s.artifacts != nil {
		if err := s.artifacts.Cleanup(id); err != nil {
			s.logger.Warn("failed to remove session artifacts", "session_id", id, "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

// sessionHistory returns the recorded model transcript of a session.
func (s *Server) sessionHistory(c *gin.Context) {
	state, ok := s.load(c)
	if !ok {
		return
	}
	entries, err := s.registry.History(c.Request.Context(), state.SessionID)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": state.SessionID, "entries": entries})
}

func (s *Server) listApprovals(c *gin.Context) {
	if s.approvals == nil {
		c.JSON(http.StatusOK, gin.H{"approvals": []orchestrator.PendingApproval{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": s.approvals.List()})
}

func (s *Server) resolveApproval(c *gin.Context) {
	var body ApprovalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if s.approvals == nil {
		s.fail(c, http.StatusNotFound, orchestrator.ErrNoPendingApproval)
		return
	}
	id := c.Param("id")
	if err := s.approvals.Resolve(id, *body.Approve); err != nil {
		s.fail(c, http.StatusNotFound, err)
		return
	}
	s.logger.Info("cost approval resolved", "session_id", id, "approved", *body.Approve)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "approved": *body.Approve})
}
