// Package planner decomposes a research request into dependent sub-tasks,
// orders them, and estimates what they will cost.
package planner

import (
	"time"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// SubTask is one unit of work in a plan.
type SubTask struct {
	ID              string         `json:"task_id"`
	Role            runstate.Role  `json:"agent_type"`
	Description     string         `json:"description"`
	DependsOn       []string       `json:"dependencies"`
	Priority        int            `json:"priority"`
	EstimatedTokens int            `json:"estimated_tokens,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Plan is an ordered set of sub-tasks for one request.
type Plan struct {
	ID                   string    `json:"plan_id"`
	Topic                string    `json:"topic"`
	SubTasks             []SubTask `json:"subtasks"`
	TotalEstimatedTokens int       `json:"total_estimated_tokens,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	Fallback             bool      `json:"fallback"`
}

// TasksFor returns the descriptions of the sub-tasks assigned to role,
// in plan order.
func (p *Plan) TasksFor(role runstate.Role) []string {
	var out []string
	for _, t := range p.SubTasks {
		if t.Role == role {
			out = append(out, t.Description)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func fallbackPlan(request string, now time.Time) *Plan {
	return &Plan{
		ID:        planID(now),
		Topic:     truncate(request, 100),
		CreatedAt: now,
		Fallback:  true,
		SubTasks: []SubTask{
			{
				ID:          "task_1",
				Role:        runstate.RoleCollector,
				Description: "Collect data for: " + truncate(request, 100),
				DependsOn:   []string{},
				Priority:    1,
			},
			{
				ID:          "task_2",
				Role:        runstate.RoleAnalyst,
				Description: "Analyze collected data and identify trends",
				DependsOn:   []string{"task_1"},
				Priority:    2,
			},
			{
				ID:          "task_3",
				Role:        runstate.RoleWriter,
				Description: "Write comprehensive research report",
				DependsOn:   []string{"task_1", "task_2"},
				Priority:    3,
			},
		},
	}
}

func planID(now time.Time) string {
	return "plan_" + now.Format("20060102_150405")
}
