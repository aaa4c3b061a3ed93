package cost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

func TestEstimateDefaults(t *testing.T) {
	c := NewCalculator(PriceTable{})
	e := c.Estimate(runstate.DefaultRequirements("EV market"))

	assert.Equal(t, 78000, e.Tokens.Total)
	assert.InDelta(t, 54600, e.Tokens.Input, 1)
	assert.InDelta(t, 23400, e.Tokens.Output, 1)
	assert.InDelta(t, 0.011115, e.TotalCost, 1e-6)
	assert.Equal(t, "USD", e.Currency)
	assert.Equal(t, BudgetGreen, e.Budget.Status)
	assert.Contains(t, e.Breakdown, runstate.RoleAnalyst)
	assert.Len(t, e.Recommendations, 1)
}

func TestEstimateBoundsHold(t *testing.T) {
	c := NewCalculator(DefaultPrices)
	for _, complexity := range []runstate.Complexity{runstate.ComplexitySimple, runstate.ComplexityMedium, runstate.ComplexityComplex} {
		for _, sources := range []int{0, 1, 7, 31} {
			req := runstate.Requirements{
				Topic: "t", PageCount: 20, SourceCount: sources, Complexity: complexity,
				IncludeAnalysis: sources%2 == 0, IncludeVisualizations: true,
			}
			e := c.Estimate(req)
			require.LessOrEqual(t, e.MinCost, e.TotalCost)
			require.LessOrEqual(t, e.TotalCost, e.MaxCost)
			require.InDelta(t, e.TotalCost, e.InputCost+e.OutputCost, 1e-12)
		}
	}
}

func TestEstimateWithoutAnalysisOmitsAnalyst(t *testing.T) {
	c := NewCalculator(DefaultPrices)
	req := runstate.DefaultRequirements("x")
	req.IncludeAnalysis = false
	e := c.Estimate(req)
	assert.Zero(t, e.Tokens.Analysis)
	assert.NotContains(t, e.Breakdown, runstate.RoleAnalyst)
}

func TestEstimateRedBand(t *testing.T) {
	c := NewCalculator(PriceTable{InputPer1M: 100, OutputPer1M: 100})
	e := c.Estimate(runstate.DefaultRequirements("x"))
	assert.InDelta(t, 7.8, e.TotalCost, 1e-3)
	assert.Equal(t, BudgetRed, e.Budget.Status)
	assert.Len(t, e.Recommendations, 4)
}

func TestAssess(t *testing.T) {
	tests := []struct {
		total float64
		want  BudgetStatus
	}{
		{0, BudgetGreen},
		{0.99, BudgetGreen},
		{1, BudgetYellow},
		{4.99, BudgetYellow},
		{5, BudgetRed},
		{120, BudgetRed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultThresholds.Assess(tt.total).Status, "total %v", tt.total)
	}
}

type stubApprover struct {
	ok    bool
	err   error
	calls int
}

func (s *stubApprover) Approve(context.Context, string, Estimate) (bool, error) {
	s.calls++
	return s.ok, s.err
}

func TestPolicies(t *testing.T) {
	ctx := context.Background()
	green := Estimate{TotalCost: 0.5, Budget: Assessment{Status: BudgetGreen}}
	red := Estimate{TotalCost: 9, Budget: Assessment{Status: BudgetRed}}

	require.NoError(t, Proceed().Allow(ctx, "s", red))
	require.NoError(t, BlockRed().Allow(ctx, "s", green))
	require.ErrorIs(t, BlockRed().Allow(ctx, "s", red), ErrBudgetExceeded)
	require.NoError(t, MaxCost(1).Allow(ctx, "s", green))
	require.ErrorIs(t, MaxCost(1).Allow(ctx, "s", red), ErrBudgetExceeded)

	approver := &stubApprover{ok: false}
	p := RequireApproval(approver)
	require.NoError(t, p.Allow(ctx, "s", green))
	assert.Zero(t, approver.calls, "green estimates skip approval")
	require.ErrorIs(t, p.Allow(ctx, "s", red), ErrBudgetExceeded)
	assert.Equal(t, 1, approver.calls)

	failing := RequireApproval(&stubApprover{err: errors.New("timeout")})
	err := failing.Allow(ctx, "s", red)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBudgetExceeded)
}

func TestNewPolicy(t *testing.T) {
	_, err := NewPolicy("proceed", 0, nil)
	require.NoError(t, err)
	_, err = NewPolicy("", 0, nil)
	require.NoError(t, err)
	_, err = NewPolicy("max_cost", 0, nil)
	require.Error(t, err)
	_, err = NewPolicy("approve", 0, nil)
	require.Error(t, err)
	_, err = NewPolicy("approve", 0, &stubApprover{})
	require.NoError(t, err)
	_, err = NewPolicy("yolo", 0, nil)
	require.Error(t, err)
}
