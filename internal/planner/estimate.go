package planner

import (
	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

const defaultTaskTokens = 5000

var roleTokens = map[runstate.Role]int{
	runstate.RoleCollector:     5000,
	runstate.RoleAPIResearcher: 3000,
	runstate.RoleAnalyst:       8000,
	runstate.RoleWriter:        12000,
	runstate.RoleCostEstimator: 2000,
}

// TokensFor returns the average token usage of a sub-task for role.
func TokensFor(role runstate.Role) int {
	if n, ok := roleTokens[role]; ok {
		return n
	}
	return defaultTaskTokens
}

// CostEstimate is the projected cost of executing a plan.
type CostEstimate struct {
	TotalTokens  int                   `json:"total_tokens"`
	InputTokens  int                   `json:"input_tokens"`
	OutputTokens int                   `json:"output_tokens"`
	InputCost    float64               `json:"input_cost_usd"`
	OutputCost   float64               `json:"output_cost_usd"`
	TotalCost    float64               `json:"total_cost_usd"`
	MinCost      float64               `json:"min_cost_usd"`
	MaxCost      float64               `json:"max_cost_usd"`
	ByRole       map[runstate.Role]int `json:"breakdown_by_agent"`
}

// EstimateCost sums per-role token estimates over the plan and prices them.
// It also records the per-task and total token estimates on p.
func EstimateCost(p *Plan, prices cost.PriceTable) CostEstimate {
	est := CostEstimate{ByRole: map[runstate.Role]int{}}
	for i := range p.SubTasks {
		n := TokensFor(p.SubTasks[i].Role)
		p.SubTasks[i].EstimatedTokens = n
		est.TotalTokens += n
		est.ByRole[p.SubTasks[i].Role] += n
	}
	est.InputTokens, est.OutputTokens = cost.SplitTokens(est.TotalTokens)
	est.InputCost, est.OutputCost, est.TotalCost = prices.Price(est.InputTokens, est.OutputTokens)
	est.MinCost, est.MaxCost = cost.Range(est.TotalCost)
	p.TotalEstimatedTokens = est.TotalTokens
	return est
}
