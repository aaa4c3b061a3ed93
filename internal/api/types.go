package api

import (
	"time"

	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/persistence"
	"github.com/vikasvdk5/WestBay/internal/roles"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	RunningJobs int    `json:"running_jobs"`
}

// RequirementsRequest carries report requirements. Pointer fields
// distinguish "not given" from false.
type RequirementsRequest struct {
	Topic                 string                `json:"topic" binding:"required"`
	PageCount             int                   `json:"page_count" binding:"omitempty,min=1,max=101"`
	SourceCount           *int                  `json:"source_count" binding:"omitempty,min=0,max=31"`
	Complexity            string                `json:"complexity" binding:"omitempty,oneof=simple medium complex"`
	IncludeAnalysis       *bool                 `json:"include_analysis"`
	IncludeVisualizations *bool                 `json:"include_visualizations"`
	URLs                  []string              `json:"urls"`
	APIRequests           []runstate.APIRequest `json:"api_requests"`
}

// Requirements applies defaults for everything not given.
func (r RequirementsRequest) Requirements() runstate.Requirements {
	req := runstate.DefaultRequirements(r.Topic)
	if r.PageCount > 0 {
		req.PageCount = r.PageCount
	}
	if r.SourceCount != nil {
		req.SourceCount = *r.SourceCount
	}
	if r.Complexity != "" {
		req.Complexity = runstate.Complexity(r.Complexity)
	}
	if r.IncludeAnalysis != nil {
		req.IncludeAnalysis = *r.IncludeAnalysis
	}
	if r.IncludeVisualizations != nil {
		req.IncludeVisualizations = *r.IncludeVisualizations
	}
	req.URLs = r.URLs
	req.APIRequests = r.APIRequests
	return req.Normalize()
}

// SubmitRequirementsRequest opens a session.
type SubmitRequirementsRequest struct {
	UserRequest  string              `json:"user_request" binding:"required"`
	Requirements RequirementsRequest `json:"requirements" binding:"required"`
}

// SubmitRequirementsResponse acknowledges a new session.
type SubmitRequirementsResponse struct {
	SessionID               string `json:"session_id"`
	Status                  string `json:"status"`
	Message                 string `json:"message"`
	SummarizedRequirement   string `json:"summarized_requirement"`
	EstimatedCompletionTime string `json:"estimated_completion_time"`
}

// CostEstimateResponse is the pre-run cost estimate of a session.
type CostEstimateResponse struct {
	SessionID       string                       `json:"session_id"`
	TotalTokens     int                          `json:"total_tokens"`
	InputTokens     int                          `json:"input_tokens"`
	OutputTokens    int                          `json:"output_tokens"`
	TotalCostUSD    float64                      `json:"total_cost_usd"`
	MinCostUSD      float64                      `json:"min_cost_usd"`
	MaxCostUSD      float64                      `json:"max_cost_usd"`
	BudgetStatus    cost.BudgetStatus            `json:"budget_status"`
	BudgetMessage   string                       `json:"budget_message"`
	AgentBreakdown  map[runstate.Role]cost.Share `json:"agent_breakdown"`
	Recommendations []string                     `json:"recommendations"`
}

// StructureResponse previews the report outline.
type StructureResponse struct {
	SessionID          string          `json:"session_id"`
	ReportType         string          `json:"report_type"`
	Sections           []roles.Section `json:"sections"`
	EstimatedPages     int             `json:"estimated_pages"`
	Generated          bool            `json:"generated"`
	ReadyForGeneration bool            `json:"ready_for_generation"`
}

// GenerateReportRequest starts the workflow for a session.
type GenerateReportRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// GenerateReportResponse acknowledges a started run.
type GenerateReportResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Progress  int    `json:"progress"`
}

// ReportStatusResponse reports workflow progress.
type ReportStatusResponse struct {
	SessionID      string                 `json:"session_id"`
	Status         runstate.Status        `json:"status"`
	Running        bool                   `json:"running"`
	CurrentAgent   runstate.Role          `json:"current_agent,omitempty"`
	CompletedTasks []string               `json:"completed_tasks"`
	TotalTasks     int                    `json:"total_tasks"`
	Progress       int                    `json:"progress"`
	ReportPath     string                 `json:"report_path,omitempty"`
	Errors         []runstate.ErrorRecord `json:"errors"`
}

// ReportResponse carries the finished report.
type ReportResponse struct {
	SessionID      string              `json:"session_id"`
	Status         runstate.Status     `json:"status"`
	Markdown       string              `json:"report_markdown"`
	ReportPath     string              `json:"report_path,omitempty"`
	Minimal        bool                `json:"minimal"`
	WordCount      int                 `json:"word_count"`
	Citations      []runstate.Citation `json:"citations"`
	Visualizations []string            `json:"visualizations"`
	GeneratedAt    time.Time           `json:"generated_at"`
}

// SessionsResponse lists sessions.
type SessionsResponse struct {
	TotalSessions int                      `json:"total_sessions"`
	Sessions      []persistence.RunSummary `json:"sessions"`
}

// ApprovalRequest resolves a pending cost approval.
type ApprovalRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}
