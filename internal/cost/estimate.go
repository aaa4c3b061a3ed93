package cost

import (
	"math"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Per-role average token usage.
const (
	collectorTokens     = 5000
	apiResearcherTokens = 3000
	analystTokens       = 8000
	coordinationTokens  = 5000
	visualizationTokens = 3000
	tokensPerPage       = 1000
)

// Tokens is the token side of an estimate.
type Tokens struct {
	Total        int `json:"total_tokens"`
	Input        int `json:"input_tokens"`
	Output       int `json:"output_tokens"`
	Research     int `json:"research_tokens"`
	Analysis     int `json:"analysis_tokens"`
	Writing      int `json:"writing_tokens"`
	Coordination int `json:"coordination_tokens"`
}

// Share is one role's portion of the token estimate.
type Share struct {
	Tokens     int     `json:"tokens"`
	Percentage float64 `json:"percentage"`
}

// Estimate is the cost-estimate node output.
type Estimate struct {
	Tokens          Tokens                  `json:"token_estimate"`
	InputCost       float64                 `json:"input_cost_usd"`
	OutputCost      float64                 `json:"output_cost_usd"`
	TotalCost       float64                 `json:"total_cost_usd"`
	MinCost         float64                 `json:"min_cost_usd"`
	MaxCost         float64                 `json:"max_cost_usd"`
	Currency        string                  `json:"currency"`
	Breakdown       map[runstate.Role]Share `json:"agent_breakdown"`
	Budget          Assessment              `json:"budget_assessment"`
	Recommendations []string                `json:"recommendations"`
}

// Calculator produces estimates from requirements.
type Calculator struct {
	prices     PriceTable
	thresholds Thresholds
}

// NewCalculator returns a Calculator using prices and the default budget
// thresholds. A zero price table selects DefaultPrices.
func NewCalculator(prices PriceTable) *Calculator {
	if prices.InputPer1M == 0 && prices.OutputPer1M == 0 {
		prices = DefaultPrices
	}
	if prices.Currency == "" {
		prices.Currency = DefaultPrices.Currency
	}
	return &Calculator{prices: prices, thresholds: DefaultThresholds}
}

// Prices returns the calculator's price table.
func (c *Calculator) Prices() PriceTable { return c.prices }

// Estimate computes the token and dollar estimate for req.
func (c *Calculator) Estimate(req runstate.Requirements) Estimate {
	req = req.Normalize()
	m := req.Complexity.Multiplier()

	research := req.SourceCount * collectorTokens
	api := (req.SourceCount / 2) * apiResearcherTokens
	analysis := 0
	if req.IncludeAnalysis {
		analysis = analystTokens
		if req.IncludeVisualizations {
			analysis += visualizationTokens
		}
	}
	writing := req.PageCount * tokensPerPage

	subtotal := research + api + analysis + writing + coordinationTokens
	t := Tokens{
		Total:        int(float64(subtotal) * m),
		Research:     int(float64(research+api) * m),
		Analysis:     int(float64(analysis) * m),
		Writing:      int(float64(writing) * m),
		Coordination: int(coordinationTokens * m),
	}
	t.Input, t.Output = SplitTokens(t.Total)

	e := Estimate{Tokens: t, Currency: c.prices.Currency}
	e.InputCost, e.OutputCost, e.TotalCost = c.prices.Price(t.Input, t.Output)
	e.MinCost, e.MaxCost = Range(e.TotalCost)
	e.Breakdown = breakdown(t, req.IncludeAnalysis)
	e.Budget = c.thresholds.Assess(e.TotalCost)
	e.Recommendations = recommendations(e.TotalCost)
	return e
}

func breakdown(t Tokens, withAnalysis bool) map[runstate.Role]Share {
	share := func(n int) Share {
		if t.Total == 0 {
			return Share{Tokens: n}
		}
		return Share{Tokens: n, Percentage: math.Round(float64(n)/float64(t.Total)*1000) / 10}
	}
	out := map[runstate.Role]Share{
		runstate.RoleLeadResearcher: share(t.Coordination),
		runstate.RoleCollector:      share(t.Research / 2),
		runstate.RoleAPIResearcher:  share(t.Research / 2),
		runstate.RoleWriter:         share(t.Writing),
	}
	if withAnalysis {
		out[runstate.RoleAnalyst] = share(t.Analysis)
	}
	return out
}

func recommendations(total float64) []string {
	switch {
	case total > 5:
		return []string{
			"Consider reducing the number of data sources to focus on highest-quality sources",
			"Reduce page count by targeting only essential sections",
			"Simplify visualizations or reduce the number of charts",
			"Consider a phased approach: initial report followed by deep-dive analysis",
		}
	case total > 2:
		return []string{"Current scope is reasonable, but consider source prioritization for cost savings"}
	default:
		return []string{"Cost is within acceptable range - proceed with current scope"}
	}
}
