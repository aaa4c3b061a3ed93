package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

func TestAnalyzeScenarios(t *testing.T) {
	tests := []struct {
		name           string
		in             Input
		collectors     int
		apiResearchers int
		analysts       int
		total          int
		required       []runstate.Role
	}{
		{
			name: "medium market report",
			in: Input{
				Topic: "EV market", PageCount: 20, SourceCount: 10,
				Complexity: runstate.ComplexityMedium, IncludeAnalysis: true, IncludeVisualizations: true,
			},
			collectors: 4, apiResearchers: 1, analysts: 1, total: 7,
			required: []runstate.Role{
				runstate.RoleCollector, runstate.RoleAPIResearcher, runstate.RoleAnalyst, runstate.RoleFallbackContent,
			},
		},
		{
			name: "simple report without analysis",
			in: Input{
				Topic: "history of tea", PageCount: 5, SourceCount: 3,
				Complexity: runstate.ComplexitySimple, IncludeAnalysis: false,
			},
			collectors: 1, apiResearchers: 0, analysts: 0, total: 2,
			required: []runstate.Role{runstate.RoleCollector, runstate.RoleFallbackContent},
		},
		{
			name: "complex crypto report",
			in: Input{
				Topic: "Crypto exchanges", PageCount: 60, SourceCount: 12,
				Complexity: runstate.ComplexityComplex, IncludeAnalysis: true,
			},
			collectors: 4, apiResearchers: 2, analysts: 3, total: 10,
			required: []runstate.Role{
				runstate.RoleCollector, runstate.RoleAPIResearcher, runstate.RoleAnalyst, runstate.RoleFallbackContent,
			},
		},
		{
			name: "keyword in requirements text only",
			in: Input{
				Topic: "coffee shops", Requirements: "include stock performance of chains",
				PageCount: 10, SourceCount: 0, Complexity: runstate.ComplexityMedium,
			},
			collectors: 1, apiResearchers: 1, analysts: 0, total: 3,
			required: []runstate.Role{runstate.RoleCollector, runstate.RoleAPIResearcher, runstate.RoleFallbackContent},
		},
		{
			name: "simple complexity ignores keywords",
			in: Input{
				Topic: "stock market", PageCount: 10, SourceCount: 4, Complexity: runstate.ComplexitySimple,
			},
			collectors: 1, apiResearchers: 0, analysts: 0, total: 2,
			required: []runstate.Role{runstate.RoleCollector, runstate.RoleFallbackContent},
		},
	}

	e := NewEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Analyze(tt.in)
			assert.Equal(t, tt.collectors, d.Collectors)
			assert.Equal(t, tt.apiResearchers, d.APIResearchers)
			assert.Equal(t, tt.analysts, d.Analysts)
			assert.Equal(t, 1, d.FallbackContent)
			assert.Equal(t, tt.total, d.TotalAgents)
			assert.Equal(t, tt.required, d.RequiredRoles())
			assert.NotEmpty(t, d.Reasoning)
		})
	}
}

func TestAnalyzeUnknownComplexityIsMedium(t *testing.T) {
	e := NewEngine(nil)
	d := e.Analyze(Input{Topic: "x", PageCount: 10, SourceCount: 10, Complexity: "galaxy-brain"})
	assert.Equal(t, runstate.ComplexityMedium, d.Complexity)
	assert.Equal(t, 3, d.SourcesPerCollector)
	assert.Equal(t, 4, d.Collectors)
}

func TestAnalyzeCharts(t *testing.T) {
	e := NewEngine(nil)
	d := e.Analyze(Input{Topic: "x", PageCount: 45, SourceCount: 3, IncludeAnalysis: true, IncludeVisualizations: true})
	assert.Equal(t, 4, d.Charts)
	assert.Equal(t, 2, d.Analysts)

	a, ok := d.Allocation(runstate.RoleAnalyst)
	require.True(t, ok)
	assert.Contains(t, a.Subtasks, "Create 4 data visualizations")
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	e := NewEngine(nil)
	in := Input{Topic: "EV market", PageCount: 30, SourceCount: 9, Complexity: runstate.ComplexityComplex, IncludeAnalysis: true}
	assert.Equal(t, e.Analyze(in), e.Analyze(in))
}

func TestAnalyzeMonotonicInSources(t *testing.T) {
	e := NewEngine(nil)
	for _, c := range []runstate.Complexity{runstate.ComplexitySimple, runstate.ComplexityMedium, runstate.ComplexityComplex} {
		prev := 0
		for sources := 0; sources <= runstate.MaxSourceCount; sources++ {
			d := e.Analyze(Input{Topic: "t", PageCount: 10, SourceCount: sources, Complexity: c})
			require.GreaterOrEqual(t, d.Collectors, prev, "complexity %s sources %d", c, sources)
			require.GreaterOrEqual(t, d.Collectors, 1)
			prev = d.Collectors
		}
	}
}

func TestAllocationsMatchCounts(t *testing.T) {
	e := NewEngine(nil)
	d := e.Analyze(Input{Topic: "EV market", PageCount: 20, SourceCount: 31, Complexity: runstate.ComplexityComplex, IncludeAnalysis: true})

	sum := 0
	for _, a := range d.Allocations {
		assert.Equal(t, d.Count(a.Role), a.Count, "role %s", a.Role)
		sum += a.Count
	}
	assert.Equal(t, d.TotalAgents, sum)

	collectors, ok := d.Allocation(runstate.RoleCollector)
	require.True(t, ok)
	assert.Len(t, collectors.Subtasks, d.Collectors)
}
