package runstate

import "strings"

// Role identifies a unit of work in the report workflow.
type Role string

const (
	RoleCostEstimator   Role = "cost_calculator"
	RoleLeadResearcher  Role = "lead_researcher"
	RoleStructure       Role = "synthesizer"
	RoleCollector       Role = "data_collector"
	RoleAPIResearcher   Role = "api_researcher"
	RoleAnalyst         Role = "analyst"
	RoleFallbackContent Role = "straight_through_llm"
	RoleWriter          Role = "writer"
)

// OptionalRoles lists the roles that may be required by a staffing decision,
// in the order the workflow visits them.
var OptionalRoles = []Role{RoleCollector, RoleAPIResearcher, RoleAnalyst, RoleFallbackContent}

// String returns the wire name of the role.
func (r Role) String() string { return string(r) }

// Complexity is the requested depth of the report.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ParseComplexity maps free text to a Complexity. Unknown values are medium.
func ParseComplexity(s string) Complexity {
	switch Complexity(strings.ToLower(strings.TrimSpace(s))) {
	case ComplexitySimple:
		return ComplexitySimple
	case ComplexityComplex:
		return ComplexityComplex
	default:
		return ComplexityMedium
	}
}

// Multiplier returns the effort multiplier used for staffing and cost.
func (c Complexity) Multiplier() float64 {
	switch c {
	case ComplexitySimple:
		return 1.0
	case ComplexityComplex:
		return 2.0
	default:
		return 1.5
	}
}
