package orchestrator

import (
	"slices"

	"github.com/vikasvdk5/WestBay/internal/runstate"
)

// Node identifies a step of the workflow graph.
type Node string

const (
	NodeCostEstimate    Node = "cost_estimate"
	NodeLeadStrategy    Node = "lead_strategy"
	NodeStructure       Node = "structure_synthesis"
	NodeCollector       Node = "data_collector"
	NodeAPIResearcher   Node = "api_researcher"
	NodeAnalyst         Node = "analyst"
	NodeFallbackContent Node = "straight_through_llm"
	NodeCompletionCheck Node = "completion_check"
	NodeFinalSynthesis  Node = "final_synthesis"
	// NodeEnd is the terminal pseudo-node. The run status tells success
	// from early error.
	NodeEnd Node = "__end__"
)

// roleNodes maps each optional role to its node, in precedence order.
var roleNodes = []struct {
	role runstate.Role
	node Node
}{
	{runstate.RoleCollector, NodeCollector},
	{runstate.RoleAPIResearcher, NodeAPIResearcher},
	{runstate.RoleAnalyst, NodeAnalyst},
	{runstate.RoleFallbackContent, NodeFallbackContent},
}

// nodeRole returns the role a node executes, if any.
func nodeRole(n Node) runstate.Role {
	switch n {
	case NodeCostEstimate:
		return runstate.RoleCostEstimator
	case NodeLeadStrategy:
		return runstate.RoleLeadResearcher
	case NodeStructure:
		return runstate.RoleStructure
	case NodeFinalSynthesis:
		return runstate.RoleWriter
	}
	for _, rn := range roleNodes {
		if rn.node == n {
			return rn.role
		}
	}
	return ""
}

func isOptionalRoleNode(n Node) bool {
	for _, rn := range roleNodes {
		if rn.node == n {
			return true
		}
	}
	return false
}

// nextRequired returns the node of the first required role that comes after
// the role of node from in precedence order. Passing NodeStructure starts at
// the beginning of the chain. With no required role left it returns the
// completion check.
func nextRequired(required []runstate.Role, from Node) Node {
	start := 0
	for i, rn := range roleNodes {
		if rn.node == from {
			start = i + 1
			break
		}
	}
	for _, rn := range roleNodes[start:] {
		if slices.Contains(required, rn.role) {
			return rn.node
		}
	}
	return NodeCompletionCheck
}

// afterFailure is where the graph goes once a research role has failed:
// the remaining research roles are skipped, but fallback content still
// runs so the run ends with report content. The completion check then
// ends the run without final synthesis.
func afterFailure(required []runstate.Role) Node {
	if slices.Contains(required, runstate.RoleFallbackContent) {
		return NodeFallbackContent
	}
	return NodeCompletionCheck
}

// route picks the node that follows from, reading the snapshot taken after
// from's update was applied.
func route(from Node, s *runstate.RunState) Node {
	if isOptionalRoleNode(from) {
		if from == NodeFallbackContent {
			return NodeCompletionCheck
		}
		if !s.Completion[nodeRole(from)] {
			return afterFailure(s.RequiredRoles)
		}
		return nextRequired(s.RequiredRoles, from)
	}
	if s.Status == runstate.StatusError {
		return NodeEnd
	}
	switch from {
	case NodeCostEstimate:
		return NodeLeadStrategy
	case NodeLeadStrategy:
		return NodeStructure
	case NodeStructure:
		return nextRequired(s.RequiredRoles, NodeStructure)
	case NodeCompletionCheck:
		if ok, _ := runstate.AllComplete(s.RequiredRoles, s.Completion); ok {
			return NodeFinalSynthesis
		}
		return NodeEnd
	}
	return NodeEnd
}
