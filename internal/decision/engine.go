// Package decision turns report requirements into a staffing decision:
// how many instances of each research role to deploy and why.
package decision

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// apiKeywords trigger API research for medium and complex reports.
var apiKeywords = []string{"market", "financial", "crypto", "stock", "economy", "technology"}

var researchAspects = []string{
	"market size and growth trends",
	"competitive landscape analysis",
	"technology and innovation trends",
	"regulatory and policy factors",
	"consumer behavior and demographics",
}

var apiDataTypes = []string{
	"market data and financial metrics",
	"industry statistics and trends",
	"competitive analysis data",
	"economic indicators",
}

// Input is the subset of requirements the engine reads.
type Input struct {
	Topic                 string
	Requirements          string
	PageCount             int
	SourceCount           int
	Complexity            runstate.Complexity
	IncludeAnalysis       bool
	IncludeVisualizations bool
}

// InputFromRequirements builds an Input from a run's requirements and the
// free-text request.
func InputFromRequirements(req runstate.Requirements, request string) Input {
	return Input{
		Topic:                 req.Topic,
		Requirements:          request,
		PageCount:             req.PageCount,
		SourceCount:           req.SourceCount,
		Complexity:            req.Complexity,
		IncludeAnalysis:       req.IncludeAnalysis,
		IncludeVisualizations: req.IncludeVisualizations,
	}
}

// Allocation is the work assigned to one role.
type Allocation struct {
	Role      runstate.Role `json:"role"`
	Count     int           `json:"count"`
	Reasoning string        `json:"reasoning"`
	Subtasks  []string      `json:"subtasks"`
}

// StaffingDecision is the engine's output.
type StaffingDecision struct {
	Complexity          runstate.Complexity `json:"complexity"`
	Collectors          int                 `json:"data_collectors"`
	APIResearchers      int                 `json:"api_researchers"`
	Analysts            int                 `json:"analysts"`
	FallbackContent     int                 `json:"straight_through_llm"`
	SourcesPerCollector int                 `json:"sources_per_collector"`
	APIsPerResearcher   int                 `json:"apis_per_researcher"`
	Charts              int                 `json:"charts"`
	TotalAgents         int                 `json:"total_agents"`
	Reasoning           []string            `json:"reasoning"`
	Allocations         []Allocation        `json:"allocations"`
}

// Count returns the number of instances allocated to role.
func (d StaffingDecision) Count(role runstate.Role) int {
	switch role {
	case runstate.RoleCollector:
		return d.Collectors
	case runstate.RoleAPIResearcher:
		return d.APIResearchers
	case runstate.RoleAnalyst:
		return d.Analysts
	case runstate.RoleFallbackContent:
		return d.FallbackContent
	}
	return 0
}

// RequiredRoles lists the roles with a non-zero count in workflow order.
// The fallback-content role is always present and always last.
func (d StaffingDecision) RequiredRoles() []runstate.Role {
	var roles []runstate.Role
	for _, r := range runstate.OptionalRoles {
		if d.Count(r) > 0 {
			roles = append(roles, r)
		}
	}
	return roles
}

// Allocation returns the allocation for role, if one was made.
func (d StaffingDecision) Allocation(role runstate.Role) (Allocation, bool) {
	for _, a := range d.Allocations {
		if a.Role == role {
			return a, true
		}
	}
	return Allocation{}, false
}

// Engine computes staffing decisions. It is stateless and safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
}

// NewEngine returns an Engine logging to logger.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{logger: logger}
}

// Analyze derives the staffing decision for in. It is a pure function of
// its input.
func (e *Engine) Analyze(in Input) StaffingDecision {
	complexity := runstate.ParseComplexity(string(in.Complexity))
	multiplier := complexity.Multiplier()
	sources := max(in.SourceCount, 0)
	pages := max(in.PageCount, 0)

	d := StaffingDecision{Complexity: complexity}

	d.SourcesPerCollector = max(3, int(5/multiplier))
	d.Collectors = max(1, (sources+d.SourcesPerCollector-1)/d.SourcesPerCollector)
	d.Reasoning = append(d.Reasoning, fmt.Sprintf(
		"Based on %d sources and %s complexity, need %d data collector(s) (each handling ~%d sources)",
		sources, complexity, d.Collectors, d.SourcesPerCollector))

	if complexity == runstate.ComplexityMedium || complexity == runstate.ComplexityComplex {
		if needsAPIData(in.Topic, in.Requirements) {
			d.APIResearchers = 1
			if complexity == runstate.ComplexityComplex {
				d.APIResearchers = 2
			}
			d.Reasoning = append(d.Reasoning, fmt.Sprintf(
				"Topic mentions market/financial data - deploying %d API researcher(s) for external data sources",
				d.APIResearchers))
		} else {
			d.Reasoning = append(d.Reasoning, "Topic doesn't require external API data - using web sources only")
		}
	}
	if d.APIResearchers > 0 {
		d.APIsPerResearcher = 2
	}

	if in.IncludeAnalysis {
		d.Analysts = max(1, pages/20)
		d.Reasoning = append(d.Reasoning, fmt.Sprintf(
			"Analysis requested for %d-page report - deploying %d analyst(s)", pages, d.Analysts))
		if in.IncludeVisualizations {
			d.Charts = max(2, pages/10)
			d.Reasoning = append(d.Reasoning, fmt.Sprintf(
				"Visualizations requested - analyst(s) will generate %d charts", d.Charts))
		}
	} else {
		d.Reasoning = append(d.Reasoning, "No detailed analysis requested - data will be summarized directly")
	}

	d.FallbackContent = 1
	d.TotalAgents = d.Collectors + d.APIResearchers + d.Analysts + d.FallbackContent
	d.Allocations = allocations(in, d, sources, pages)

	e.logger.Info("staffing decision",
		"topic", in.Topic,
		"complexity", complexity,
		"data_collectors", d.Collectors,
		"api_researchers", d.APIResearchers,
		"analysts", d.Analysts,
		"total_agents", d.TotalAgents,
	)
	return d
}

func needsAPIData(topic, requirements string) bool {
	topic = strings.ToLower(topic)
	requirements = strings.ToLower(requirements)
	for _, kw := range apiKeywords {
		if strings.Contains(topic, kw) || strings.Contains(requirements, kw) {
			return true
		}
	}
	return false
}

func allocations(in Input, d StaffingDecision, sources, pages int) []Allocation {
	var out []Allocation

	perCollector := (sources + d.Collectors - 1) / d.Collectors
	collectorTasks := make([]string, 0, d.Collectors)
	for i := range d.Collectors {
		if d.Collectors <= len(researchAspects) {
			collectorTasks = append(collectorTasks, fmt.Sprintf(
				"Research %s - collect data from ~%d sources", researchAspects[i], perCollector))
			continue
		}
		collectorTasks = append(collectorTasks, fmt.Sprintf(
			"Collect data on %s (batch %d/%d) - ~%d sources", in.Topic, i+1, d.Collectors, perCollector))
	}
	out = append(out, Allocation{
		Role:      runstate.RoleCollector,
		Count:     d.Collectors,
		Reasoning: fmt.Sprintf("Collect data from %d web sources", sources),
		Subtasks:  collectorTasks,
	})

	if d.APIResearchers > 0 {
		tasks := make([]string, 0, d.APIResearchers)
		for i := range d.APIResearchers {
			tasks = append(tasks, fmt.Sprintf("Gather %s via external APIs", apiDataTypes[i%len(apiDataTypes)]))
		}
		out = append(out, Allocation{
			Role:      runstate.RoleAPIResearcher,
			Count:     d.APIResearchers,
			Reasoning: "Gather external API data for market/financial insights",
			Subtasks:  tasks,
		})
	}

	if d.Analysts > 0 {
		tasks := []string{
			"Analyze collected data and identify key trends",
			"Generate insights and recommendations",
		}
		if in.IncludeVisualizations {
			tasks = append(tasks, fmt.Sprintf("Create %d data visualizations", d.Charts))
		}
		out = append(out, Allocation{
			Role:      runstate.RoleAnalyst,
			Count:     d.Analysts,
			Reasoning: fmt.Sprintf("Analyze collected data and generate %d visualizations", max(2, pages/10)),
			Subtasks:  tasks,
		})
	}

	out = append(out, Allocation{
		Role:      runstate.RoleFallbackContent,
		Count:     1,
		Reasoning: "Generate report content from model knowledge (always included)",
		Subtasks: []string{
			fmt.Sprintf("Generate professional content for all report sections on %s", in.Topic),
			fmt.Sprintf("Produce %d words of well-structured, business-quality narrative", pages*250),
			"Provide citations and references for all claims",
			"Ensure no placeholder text in any section",
		},
	})
	return out
}
